package approval

import "fmt"

// Direct messages to the applicant.
const (
	userApprovedDM = "🎉 Congratulations! Your application has been approved. Welcome to our community!"
	userDeclinedDM = "❌ Unfortunately, your application has been declined. Thank you for your interest in our community."
	userExpiredDM  = "⏰ Your application expired before an admin could review it. You are welcome to apply again with /start."
)

func userApprovedWithLink(inviteLink string) string {
	return "🎉 You have been approved!\n\n" +
		"Tap this one-time invite link to join the group:\n" +
		inviteLink + "\n\n" +
		"Note: This link works once and expires after first use."
}

// Announcements in the admin chat.
func adminApprovedAdded(firstName string) string {
	return fmt.Sprintf("✅ %s has been approved and added to the group!", firstName)
}

func adminApprovedLinkSent(firstName string) string {
	return fmt.Sprintf("✅ %s approved. Single-use invite link has been sent to the user.", firstName)
}

func adminDeclined(firstName string) string {
	return fmt.Sprintf("❌ %s has been declined.", firstName)
}

func adminExpired(firstName string) string {
	return fmt.Sprintf("⏰ Request from %s expired without a decision.", firstName)
}

func adminActionFailed(action string, userID int64, err error) string {
	return fmt.Sprintf("⚠️ Failed to %s for user %d: %v. Please complete this manually.", action, userID, err)
}
