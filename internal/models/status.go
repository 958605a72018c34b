package models

import (
	"strconv"
	"strings"
)

// Status is the lifecycle state of a trámite.
type Status int

const (
	StatusReceived  Status = 1
	StatusAssigned  Status = 2
	StatusInProcess Status = 3
	StatusFinalized Status = 4
	StatusDelivered Status = 5
)

// AllStatuses lists every lifecycle state in order.
var AllStatuses = []Status{StatusReceived, StatusAssigned, StatusInProcess, StatusFinalized, StatusDelivered}

var statusLabels = map[Status]string{
	StatusReceived:  "Received",
	StatusAssigned:  "Assigned",
	StatusInProcess: "In Process",
	StatusFinalized: "Finalized",
	StatusDelivered: "Delivered",
}

var statusCodes = map[Status]string{
	StatusReceived:  "RECEIVED",
	StatusAssigned:  "ASSIGNED",
	StatusInProcess: "IN_PROCESS",
	StatusFinalized: "FINALIZED",
	StatusDelivered: "DELIVERED",
}

// backend and legacy spellings of each state, keyed after normalisation
var statusAliases = map[string]Status{
	"RECEIVED":   StatusReceived,
	"RECIBIDO":   StatusReceived,
	"ASSIGNED":   StatusAssigned,
	"ASIGNADO":   StatusAssigned,
	"IN_PROCESS": StatusInProcess,
	"EN_PROCESO": StatusInProcess,
	"FINALIZED":  StatusFinalized,
	"FINALIZADO": StatusFinalized,
	"TERMINADO":  StatusFinalized,
	"DELIVERED":  StatusDelivered,
	"ENTREGADO":  StatusDelivered,
}

// Valid reports whether s is a known lifecycle state.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the display label ("In Process").
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

// Code returns the machine code ("IN_PROCESS").
func (s Status) Code() string {
	if code, ok := statusCodes[s]; ok {
		return code
	}
	return "UNKNOWN"
}

func (s Status) String() string {
	return s.Code()
}

// ParseStatusLabel normalises backend status labels and numeric ids.
// "ASIGNADO", "Asignado", "assigned", "En proceso" and "2" are all accepted.
func ParseStatusLabel(raw string) (Status, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(trimmed); err == nil {
		s := Status(n)
		return s, s.Valid()
	}
	key := strings.ToUpper(trimmed)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)
	s, ok := statusAliases[key]
	return s, ok
}
