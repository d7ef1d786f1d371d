package mail

type Message struct {
	To      []string
	Cc      []string
	Subject string
	Body    string
}

type MailSender interface {
	Send(message *Message) error
}
