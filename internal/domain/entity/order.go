package entity

import "time"

// Order is the field-work assignment a report is written against
type Order struct {
	ID            int64     `json:"id"`
	OrderRef      string    `json:"order_ref"`
	ExecutionDate *Date     `json:"execution_date,omitempty"`
	ElevatedRate  bool      `json:"elevated_rate"`
	Team          Team      `json:"team"`
	CreatedAt     time.Time `json:"created_at"`
}
