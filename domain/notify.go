package domain

import "fmt"

// Notification trigger rules. Builders produce one record per recipient; the
// service hands the batch to the notifier after the primary write so delivery
// can never block or fail a mutation.

func (s *Service) send(batch []Notification) {
	for _, n := range batch {
		s.notifier.Notify(n)
	}
}

func (s *Service) newNotification(recipientID, senderID, senderName, message string) Notification {
	return Notification{
		ID:          s.newID(),
		RecipientID: recipientID,
		SenderID:    senderID,
		SenderName:  senderName,
		Message:     message,
		Sent:        s.now().UTC(),
	}
}

func (s *Service) contributorAdded(recipientID, senderID, senderName, boardName string, role Role) Notification {
	msg := fmt.Sprintf("%s added you to the board %q as a %s.", displayOr(senderName), boardName, role)
	return s.newNotification(recipientID, senderID, senderName, msg)
}

func (s *Service) boardDeleted(recipientID, senderID, senderName, boardName string) Notification {
	msg := fmt.Sprintf("%s deleted the board %q.", displayOr(senderName), boardName)
	return s.newNotification(recipientID, senderID, senderName, msg)
}

func (s *Service) taskAssigned(recipientID, senderID, senderName, taskTitle string) Notification {
	msg := fmt.Sprintf("%s assigned you to the task %q.", displayOr(senderName), taskTitle)
	return s.newNotification(recipientID, senderID, senderName, msg)
}

func (s *Service) taskCompleted(recipientID, senderID, senderName, taskTitle string) Notification {
	msg := fmt.Sprintf("%s marked the task %q as complete.", displayOr(senderName), taskTitle)
	return s.newNotification(recipientID, senderID, senderName, msg)
}

func (s *Service) taskDeleted(recipientID, senderID, senderName, taskTitle string) Notification {
	msg := fmt.Sprintf("%s deleted the task %q.", displayOr(senderName), taskTitle)
	return s.newNotification(recipientID, senderID, senderName, msg)
}

func displayOr(senderName string) string {
	if senderName == "" {
		return "Someone"
	}
	return senderName
}
