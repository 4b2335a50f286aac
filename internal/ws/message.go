package ws

// Message type constants shared by server and clients.
const (
	MessageTypeSubscribe             = "subscribe"
	MessageTypeSubscriptionConfirmed = "subscription_confirmed"
	MessageTypeStockUpdate           = "stock_update"
	MessageTypeError                 = "error"
)

// ClientMessage is an inbound message from a subscriber. DeliveryIDs is a
// pointer so a subscribe with the field omitted can be told apart from one
// with an explicit empty list: omitted means no scoping requested, an empty
// list means subscribed to nothing.
type ClientMessage struct {
	Type        string   `json:"type"`
	DeliveryIDs *[]int64 `json:"delivery_ids,omitempty"`
}

// Confirmation acknowledges a subscribe, echoing the stored interest list.
type Confirmation struct {
	Type        string  `json:"type"`
	DeliveryIDs []int64 `json:"delivery_ids"`
}

// Update carries recomputed summary rows to a subscriber. Payload is typed
// by the caller; it serializes as a JSON array of summary rows.
type Update struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ErrorMessage reports a per-connection protocol error to the client.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
