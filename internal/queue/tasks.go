package queue

const (
	TypeEmailSend = "email:send"
)

type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}
