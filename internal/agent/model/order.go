package model

import (
	"context"
	"time"
)

// OrderStatus is the lifecycle state of an order record.
type OrderStatus string

const (
	OrderActive    OrderStatus = "active"
	OrderDelivered OrderStatus = "delivered"
	OrderCanceled  OrderStatus = "canceled"
	OrderNotExist  OrderStatus = "not_exist"
)

// CancelOutcome is what the order backend reports for a cancel request.
type CancelOutcome string

const (
	CancelAlreadyDelivered CancelOutcome = "already_delivered"
	CancelNotExist         CancelOutcome = "not_exist"
	CancelAlreadyCanceled  CancelOutcome = "already_canceled"
	CancelCanceledNow      CancelOutcome = "canceled_now"
)

// Session status values recorded by the terminal nodes.
const (
	StatusNotExist  = "not exist"
	StatusDelivered = "delivered"
	StatusCanceled  = "canceled"
	StatusActive    = "active"
	StatusCommented = "commented"
	StatusMissing   = "missing"
	StatusFound     = "found"
	StatusAnswered  = "answered"
	StatusForced    = "forced"
)

type Order struct {
	ID         string      `json:"id"`
	Phone      string      `json:"phone"`
	PersonName string      `json:"person_name"`
	Items      string      `json:"items"`
	Status     OrderStatus `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
}

// OrderService is the order-management collaborator.
type OrderService interface {
	Cancel(ctx context.Context, orderID, phone string) (CancelOutcome, error)
	AddComment(ctx context.Context, orderID, personName, comment string) (string, error)
	Status(ctx context.Context, orderID string) (OrderStatus, error)
}
