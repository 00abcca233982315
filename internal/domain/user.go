package domain

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/joao-fontenele/pizzaflow/internal/apperr"
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

type User struct {
	Version        int            `json:"version"`
	Name           string         `json:"name"`
	Email          string         `json:"email"`
	Address        string         `json:"address"`
	Phone          string         `json:"phone,omitempty"`
	HashedPassword string         `json:"hashedPassword"`
	Cart           map[string]int `json:"cart"`
	Orders         []string       `json:"orders"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// PublicUser is the user document returned over HTTP.
type PublicUser struct {
	Name    string         `json:"name"`
	Email   string         `json:"email"`
	Address string         `json:"address"`
	Phone   string         `json:"phone,omitempty"`
	Cart    map[string]int `json:"cart"`
	Orders  []string       `json:"orders"`
}

func ValidEmail(email string) bool {
	if email == "" || strings.TrimSpace(email) != email {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func ValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

func NewUser(name, email, address, phone, hashedPassword string, now time.Time) (*User, error) {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)
	phone = strings.TrimSpace(phone)

	switch {
	case name == "":
		return nil, apperr.New(apperr.KindInvalidRequest, "missing name")
	case !ValidEmail(email):
		return nil, apperr.New(apperr.KindInvalidRequest, "invalid email")
	case address == "":
		return nil, apperr.New(apperr.KindInvalidRequest, "missing address")
	case phone != "" && !ValidPhone(phone):
		return nil, apperr.New(apperr.KindInvalidRequest, "invalid phone")
	case hashedPassword == "":
		return nil, apperr.New(apperr.KindInvalidRequest, "missing password")
	}

	return &User{
		Version:        RecordVersion,
		Name:           name,
		Email:          email,
		Address:        address,
		Phone:          phone,
		HashedPassword: hashedPassword,
		Cart:           map[string]int{},
		Orders:         []string{},
		CreatedAt:      now.UTC(),
	}, nil
}

// SetCartQuantity sets the quantity of one item; zero or less removes it.
func (u *User) SetCartQuantity(itemID string, qty int) {
	if u.Cart == nil {
		u.Cart = map[string]int{}
	}
	if qty <= 0 {
		delete(u.Cart, itemID)
		return
	}
	u.Cart[itemID] = qty
}

// ClearOrdered drops the cart lines that still hold the quantity that was
// ordered. Lines changed since the snapshot was taken stay in the cart.
func (u *User) ClearOrdered(ordered map[string]int) {
	for id, qty := range ordered {
		if u.Cart[id] == qty {
			delete(u.Cart, id)
		}
	}
	if u.Cart == nil {
		u.Cart = map[string]int{}
	}
}

// CartSnapshot returns a copy of the cart.
func (u *User) CartSnapshot() map[string]int {
	cp := make(map[string]int, len(u.Cart))
	for k, v := range u.Cart {
		if v > 0 {
			cp[k] = v
		}
	}
	return cp
}

// AppendOrder adds orderID at the end of the order list unless already present.
func (u *User) AppendOrder(orderID string) {
	if slices.Contains(u.Orders, orderID) {
		return
	}
	u.Orders = append(u.Orders, orderID)
}

func (u *User) RemoveOrder(orderID string) bool {
	i := slices.Index(u.Orders, orderID)
	if i < 0 {
		return false
	}
	u.Orders = slices.Delete(u.Orders, i, i+1)
	return true
}

func (u *User) Public() PublicUser {
	orders := u.Orders
	if orders == nil {
		orders = []string{}
	}
	return PublicUser{
		Name:    u.Name,
		Email:   u.Email,
		Address: u.Address,
		Phone:   u.Phone,
		Cart:    u.CartSnapshot(),
		Orders:  orders,
	}
}

func (u *User) Validate() error {
	if u.Version != RecordVersion {
		return fmt.Errorf("unsupported user version %d", u.Version)
	}
	if u.Email == "" {
		return errors.New("user missing email")
	}
	return nil
}
