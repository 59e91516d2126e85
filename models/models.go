package models

// All lists every gorm model for auto-migration
func All() []interface{} {
	return []interface{}{&User{}, &Order{}, &Transaction{}, &PaymentEvent{}}
}
