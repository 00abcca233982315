package messaging

import "github.com/segmentio/kafka-go"

// HeaderEventType names the header that carries the event type of a message.
const HeaderEventType = "event-type"

// HeaderCarrier adapts kafka message headers to the otel TextMapCarrier
// interface.
type HeaderCarrier struct {
	headers *[]kafka.Header
}

func NewHeaderCarrier(headers *[]kafka.Header) HeaderCarrier {
	return HeaderCarrier{headers: headers}
}

func (c HeaderCarrier) Get(key string) string {
	return headerValue(*c.headers, key)
}

func (c HeaderCarrier) Set(key, value string) {
	setHeader(c.headers, key, value)
}

func (c HeaderCarrier) Keys() []string {
	keys := make([]string, len(*c.headers))
	for i, h := range *c.headers {
		keys[i] = h.Key
	}
	return keys
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func setHeader(headers *[]kafka.Header, key, value string) {
	for i, h := range *headers {
		if h.Key == key {
			(*headers)[i].Value = []byte(value)
			return
		}
	}
	*headers = append(*headers, kafka.Header{Key: key, Value: []byte(value)})
}
