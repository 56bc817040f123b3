package email

import "fmt"

func InvitationMessage(to, senderLabel, link string, goingHome bool) *Message {
	if goingHome {
		return &Message{
			To:      to,
			Subject: fmt.Sprintf("%s is heading home", senderLabel),
			TextBody: fmt.Sprintf("%s started a going-home check-in and listed you as a contact.\n\n"+
				"You will get another email when they arrive. Follow the check-in here:\n%s\n", senderLabel, link),
		}
	}
	return &Message{
		To:      to,
		Subject: fmt.Sprintf("%s needs help", senderLabel),
		TextBody: fmt.Sprintf("%s started an emergency alert and is sharing their live location with you.\n\n"+
			"Open the live view:\n%s\n\nThis link expires in 24 hours.\n", senderLabel, link),
	}
}

func ArrivalMessage(to, senderLabel string) *Message {
	return &Message{
		To:       to,
		Subject:  fmt.Sprintf("%s arrived home", senderLabel),
		TextBody: fmt.Sprintf("%s ended their going-home check-in and arrived safely.\n", senderLabel),
	}
}

func VerificationMessage(to, link string) *Message {
	return &Message{
		To:      to,
		Subject: "Confirm you can receive safety alerts",
		TextBody: "Someone added this address as an emergency contact.\n\n" +
			"Confirm to start receiving their alerts:\n" + link + "\n\nThis link expires in 72 hours.\n",
	}
}
