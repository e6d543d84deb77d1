package models

// HistoryRequest filters the completed-spike history endpoint.
type HistoryRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required,min=1,max=16"`
	From   string `query:"from" json:"from,omitempty"`
	To     string `query:"to" json:"to,omitempty"`
	Limit  int    `query:"limit" json:"limit,omitempty" default:"50" validate:"gte=1,lte=500"`
}

// SymbolsRequest adds or removes symbols from the tracked universe.
type SymbolsRequest struct {
	Symbols []string `json:"symbols" validate:"required,min=1,dive,min=1,max=16"`
}
