package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/pizzaflow/internal/domain"
)

var invoiceTemplate = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<body>
<h1>Thank you for your order</h1>
<p>Order <strong>{{.OrderID}}</strong> for {{.Email}}</p>
<p>Placed {{.CreatedOn}}{{if .CompletedOn}}, paid {{.CompletedOn}}{{end}}</p>
<table>
<tr><th>Item</th><th>Description</th><th>Price</th><th>Qty</th><th>Subtotal</th></tr>
{{- range .Lines}}
<tr><td>{{.Name}}</td><td>{{.Description}}</td><td>{{.Price}}</td><td>{{.Quantity}}</td><td>{{.Subtotal}}</td></tr>
{{- end}}
</table>
<p>Total: <strong>{{.Total}} {{.Currency}}</strong></p>
</body>
</html>
`))

type invoiceLine struct {
	Name        string
	Description string
	Price       string
	Quantity    int
	Subtotal    string
}

type invoiceView struct {
	OrderID     string
	Email       string
	CreatedOn   string
	CompletedOn string
	Lines       []invoiceLine
	Total       string
	Currency    string
}

// Sender is the transport used by InvoiceSender.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

type InvoiceSender struct {
	sender   Sender
	from     string
	currency string
	logger   *slog.Logger
}

func NewInvoiceSender(sender Sender, from, currency string, logger *slog.Logger) *InvoiceSender {
	return &InvoiceSender{
		sender:   sender,
		from:     from,
		currency: currency,
		logger:   logger,
	}
}

// SendInvoice renders the receipt for a completed order and sends it to the
// order's owner. Items missing from prices are left out of the lines.
func (s *InvoiceSender) SendInvoice(ctx context.Context, order *domain.Order, prices map[string]domain.Item) error {
	html, err := RenderInvoice(order, prices, s.currency)
	if err != nil {
		return err
	}

	id, err := s.sender.Send(ctx, Message{
		From:    s.from,
		To:      order.Email,
		Subject: fmt.Sprintf("Your pizza order %s", order.ID),
		HTML:    html,
	})
	if err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}

	s.logger.Info("invoice sent", "order_id", order.ID, "message_id", id)
	return nil
}

func RenderInvoice(order *domain.Order, prices map[string]domain.Item, currency string) (string, error) {
	ids := make([]string, 0, len(order.Items))
	for id := range order.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	view := invoiceView{
		OrderID:   order.ID,
		Email:     order.Email,
		CreatedOn: order.CreatedOn.Format(time.RFC1123),
		Total:     order.Total.StringFixed(2),
		Currency:  currency,
	}
	if order.CompletedOn != nil {
		view.CompletedOn = order.CompletedOn.Format(time.RFC1123)
	}

	for _, id := range ids {
		item, ok := prices[id]
		if !ok {
			continue
		}
		qty := order.Items[id]
		view.Lines = append(view.Lines, invoiceLine{
			Name:        item.Name,
			Description: item.Description,
			Price:       item.Price.StringFixed(2),
			Quantity:    qty,
			Subtotal:    item.Price.Mul(decimal.NewFromInt(int64(qty))).StringFixed(2),
		})
	}

	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("render invoice: %w", err)
	}
	return buf.String(), nil
}
