package record

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type CreateDTO struct {
	GUID   string         `json:"guid"`
	Name   string         `json:"name" validate:"required"`
	Amount string         `json:"amount"`
	Data   map[string]any `json:"data"`
}

type UpdateDTO struct {
	Name   string         `json:"name" validate:"required"`
	Amount string         `json:"amount"`
	Data   map[string]any `json:"data"`
}

func (d *CreateDTO) Normalize() {
	d.GUID = strings.TrimSpace(d.GUID)
	d.Name = strings.TrimSpace(d.Name)
	d.Amount = strings.TrimSpace(d.Amount)
}

func (d *CreateDTO) Ok(v *validator.Validate) error {
	d.Normalize()
	if err := v.Struct(d); err != nil {
		return err
	}
	_, err := d.DecimalAmount()
	return err
}

func (d *CreateDTO) DecimalAmount() (decimal.Decimal, error) {
	if d.Amount == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(d.Amount)
}

func (d *UpdateDTO) Normalize() {
	d.Name = strings.TrimSpace(d.Name)
	d.Amount = strings.TrimSpace(d.Amount)
}

func (d *UpdateDTO) Ok(v *validator.Validate) error {
	d.Normalize()
	if err := v.Struct(d); err != nil {
		return err
	}
	_, err := d.DecimalAmount()
	return err
}

func (d *UpdateDTO) DecimalAmount() (decimal.Decimal, error) {
	if d.Amount == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(d.Amount)
}
