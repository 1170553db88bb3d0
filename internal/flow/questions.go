package flow

// Question is one step of the application. Prompt is shown verbatim;
// optional questions can be skipped with /skip.
type Question struct {
	ID       string
	Prompt   string
	Required bool
}

// DefaultQuestions is the stock application for the group: where the
// applicant found us, who can vouch for them, and an optional free-form note.
func DefaultQuestions() []Question {
	return []Question{
		{
			ID:       "source",
			Prompt:   "To join our group, please tell us how you found out about us (Couchsurfing, a friend's invitation, Facebook, or something else).",
			Required: true,
		},
		{
			ID:       "details",
			Prompt:   "Please share the details: your Couchsurfing profile link, the Telegram username of the person who invited you, or a link to where you found us.",
			Required: true,
		},
		{
			ID:       "extra",
			Prompt:   "Anything else you'd like us to know? Send /skip to leave this out.",
			Required: false,
		},
	}
}
