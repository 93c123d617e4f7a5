package entity

// ObjectCondition records the observed state of one inspected object
type ObjectCondition struct {
	ObjectRef string `json:"object_ref" validate:"required,max=100"`
	Condition string `json:"condition" validate:"required,oneof=good fair poor damaged missing"`
	Notes     string `json:"notes" validate:"max=2000"`
}

// PartB is the inspected-object condition section of a report
type PartB struct {
	Objects   []ObjectCondition `json:"objects" validate:"dive"`
	Notes     string            `json:"notes" validate:"max=5000"`
	Completed bool              `json:"completed"`
}
