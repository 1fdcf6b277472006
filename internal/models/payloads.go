package models

import "time"

// These structs define the JSON payloads the bridge emits: status events sent
// to the notification sink and the body of the status endpoint.

// StatusEvent is the data of a CloudEvent emitted on every status write.
type StatusEvent struct {
	OrderID   string    `json:"orderId"`
	Status    Status    `json:"status"`
	FileName  string    `json:"fileName,omitempty"`
	PaperType string    `json:"paperType,omitempty"`
	ErrorMsg  string    `json:"errorMsg,omitempty"`
	PrintedAt time.Time `json:"printedAt,omitzero"`
}

// BridgeStatusResponse is the output of the BridgeStatus HTTP function.
type BridgeStatusResponse struct {
	AutoPrintEnabled bool     `json:"autoPrintEnabled"`
	AutoPrintTypes   []string `json:"autoPrintTypes"`
	PrinterName      string   `json:"printerName,omitempty"`
	InFlight         int      `json:"inFlight"`
}
