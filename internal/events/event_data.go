package events

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// SpaceCreatedData contains data for SpaceCreated events
type SpaceCreatedData struct {
	SpaceID   string `json:"space_id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	SpaceType string `json:"space_type"`
}

// EventType returns the event type for SpaceCreatedData
func (d *SpaceCreatedData) EventType() EventType { return SpaceCreated }

// SpaceUpdatedData contains data for SpaceUpdated events
type SpaceUpdatedData struct {
	SpaceID   string   `json:"space_id"`
	AccountID string   `json:"account_id"`
	Fields    []string `json:"fields"`
}

// EventType returns the event type for SpaceUpdatedData
func (d *SpaceUpdatedData) EventType() EventType { return SpaceUpdated }

// BalanceChangedData contains data for BalanceChanged events.
// Amounts are decimal strings.
type BalanceChangedData struct {
	SpaceID     string `json:"space_id"`
	AccountID   string `json:"account_id"`
	Amount      string `json:"amount"`
	NewBalance  string `json:"new_balance"`
	EntryType   string `json:"entry_type"`
	Reason      string `json:"reason"`
	ReferenceID string `json:"reference_id,omitempty"`
}

// EventType returns the event type for BalanceChangedData
func (d *BalanceChangedData) EventType() EventType { return BalanceChanged }

// SpaceFrozenData contains data for SpaceFrozen events
type SpaceFrozenData struct {
	SpaceID   string `json:"space_id"`
	AccountID string `json:"account_id"`
	FrozenAt  string `json:"frozen_at"`
}

// EventType returns the event type for SpaceFrozenData
func (d *SpaceFrozenData) EventType() EventType { return SpaceFrozen }

// SpaceUnfrozenData contains data for SpaceUnfrozen events
type SpaceUnfrozenData struct {
	SpaceID    string `json:"space_id"`
	AccountID  string `json:"account_id"`
	UnfrozenAt string `json:"unfrozen_at"`
}

// EventType returns the event type for SpaceUnfrozenData
func (d *SpaceUnfrozenData) EventType() EventType { return SpaceUnfrozen }

// TransferCompletedData contains data for TransferCompleted events
type TransferCompletedData struct {
	ReferenceID string `json:"reference_id"`
	FromSpaceID string `json:"from_space_id"`
	ToSpaceID   string `json:"to_space_id"`
	Amount      string `json:"amount"`
}

// EventType returns the event type for TransferCompletedData
func (d *TransferCompletedData) EventType() EventType { return TransferCompleted }

// TransferCompensatedData contains data for TransferCompensated events.
// CompensationError is set when reversing the debit also failed.
type TransferCompensatedData struct {
	ReferenceID       string `json:"reference_id"`
	FromSpaceID       string `json:"from_space_id"`
	ToSpaceID         string `json:"to_space_id"`
	Amount            string `json:"amount"`
	CreditError       string `json:"credit_error"`
	CompensationError string `json:"compensation_error,omitempty"`
}

// EventType returns the event type for TransferCompensatedData
func (d *TransferCompensatedData) EventType() EventType { return TransferCompensated }

// InvariantViolatedData contains data for InvariantViolated events
type InvariantViolatedData struct {
	AccountID    string `json:"account_id"`
	SpacesTotal  string `json:"spaces_total"`
	AccountTotal string `json:"account_total"`
	Difference   string `json:"difference"`
}

// EventType returns the event type for InvariantViolatedData
func (d *InvariantViolatedData) EventType() EventType { return InvariantViolated }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// EventType returns the event type for ErrorEventData
func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }
