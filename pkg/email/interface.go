package email

import "context"

type Sender interface {
	SendEmail(ctx context.Context, message *Message) error
}

type Message struct {
	To       string `json:"to"`
	Subject  string `json:"subject"`
	TextBody string `json:"text_body"`
}
