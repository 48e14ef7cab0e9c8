package domain

// DecrementRequest asks for a single stock reduction on behalf of an order.
// It is immutable once built; the derived keys below make redelivery of the
// same request detectable downstream.
type DecrementRequest struct {
	OrderID    string `json:"order_id"`
	ProductKey string `json:"product_key"`
	Quantity   int    `json:"quantity"`
}

// GroupID is the partition key: all requests for one product share it, so a
// FIFO channel delivers them in enqueue order.
func (r DecrementRequest) GroupID() string {
	return "STOCK_GROUP" + r.ProductKey
}

// DeduplicationID identifies one (product, order) decrement. Redeliveries
// carry the same ID and must resolve to the first successful result.
func (r DecrementRequest) DeduplicationID() string {
	return "STOCK_" + r.ProductKey + "ORDER_" + r.OrderID
}

// Message wraps a DecrementRequest for a key-partitioned FIFO channel.
type Message struct {
	PartitionKey    string
	DeduplicationID string
	Request         DecrementRequest
}

func NewMessage(req DecrementRequest) Message {
	return Message{
		PartitionKey:    req.GroupID(),
		DeduplicationID: req.DeduplicationID(),
		Request:         req,
	}
}
