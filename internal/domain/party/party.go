// Package party models the two kinds of marketplace participant and the
// lookups the booking core needs from each.
package party

import (
	"context"
	"fmt"
	"strconv"

	"github.com/reignacare/service-booking/internal/domain/booking"
	"github.com/reignacare/service-booking/internal/platform/domain"
)

// Role identifies which kind of party a reference points at.
type Role string

const (
	RoleCarer  Role = "carer"
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Ref is a tagged reference to a party.
type Ref struct {
	Role Role
	ID   uint64
}

// CarerRef returns a reference to a carer.
func CarerRef(id uint64) Ref { return Ref{Role: RoleCarer, ID: id} }

// ClientRef returns a reference to a client.
func ClientRef(id uint64) Ref { return Ref{Role: RoleClient, ID: id} }

// String renders the reference as "role:id".
func (r Ref) String() string { return string(r.Role) + ":" + strconv.FormatUint(r.ID, 10) }

// Carer is a care provider.
type Carer struct {
	ID         uint64
	FullName   string
	Email      string
	ChargeRate booking.Quantity
	PushToken  string
}

// Client is a person requesting care.
type Client struct {
	ID        uint64
	FullName  string
	Email     string
	PushToken string
}

// Contact is the role independent view used for notifications.
type Contact struct {
	Ref       Ref
	Name      string
	Email     string
	PushToken string
}

// Contact returns the carer's notification details.
func (c *Carer) Contact() Contact {
	return Contact{Ref: CarerRef(c.ID), Name: c.FullName, Email: c.Email, PushToken: c.PushToken}
}

// Contact returns the client's notification details.
func (c *Client) Contact() Contact {
	return Contact{Ref: ClientRef(c.ID), Name: c.FullName, Email: c.Email, PushToken: c.PushToken}
}

// CarerDirectory looks up carers.
type CarerDirectory interface {
	FindCarer(ctx context.Context, id uint64) (*Carer, error)
	UpdateCarerPushToken(ctx context.Context, id uint64, token string) error
}

// ClientDirectory looks up clients.
type ClientDirectory interface {
	FindClient(ctx context.Context, id uint64) (*Client, error)
}

// Directory resolves any party reference to its contact details.
type Directory struct {
	Carers  CarerDirectory
	Clients ClientDirectory
}

// Resolve returns the contact details behind ref.
func (d Directory) Resolve(ctx context.Context, ref Ref) (Contact, error) {
	switch ref.Role {
	case RoleCarer:
		c, err := d.Carers.FindCarer(ctx, ref.ID)
		if err != nil {
			return Contact{}, err
		}
		return c.Contact(), nil
	case RoleClient:
		c, err := d.Clients.FindClient(ctx, ref.ID)
		if err != nil {
			return Contact{}, err
		}
		return c.Contact(), nil
	default:
		return Contact{}, domain.NewValidationError(fmt.Sprintf("no contact record for role %q", ref.Role))
	}
}
