package models

// MessageTemplate is a client-facing message body keyed by template ID and
// locale. Placeholders use {{.key}} syntax and are filled at delivery time.
type MessageTemplate struct {
	TemplateID string `bson:"template_id" json:"template_id"`
	Locale     string `bson:"locale" json:"locale"`
	Subject    string `bson:"subject" json:"subject"`
	Body       string `bson:"body" json:"body"`
}
