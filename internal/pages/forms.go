package pages

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jetsetgo/warehouse-console/internal/gateway"
	"github.com/jetsetgo/warehouse-console/internal/records"
	"github.com/jetsetgo/warehouse-console/internal/views"
)

var productIDPattern = regexp.MustCompile(`^[A-Z0-9-]{3,20}$`)

type formReader struct {
	values url.Values
	errs   ValidationErrors
}

func (f *formReader) text(field string) string {
	return strings.TrimSpace(f.values.Get(field))
}

func (f *formReader) required(field, label string) string {
	v := f.text(field)
	if v == "" {
		f.errs.add(field, label+" is required")
	}
	return v
}

func (f *formReader) decimal(field, label string, required bool) decimal.Decimal {
	v := f.text(field)
	if v == "" {
		if required {
			f.errs.add(field, label+" is required")
		}
		return decimal.Zero
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		f.errs.add(field, label+" must be a number")
		return decimal.Zero
	}
	if d.IsNegative() {
		f.errs.add(field, label+" must be 0 or more")
	}
	return d
}

func (f *formReader) integer(field, label string, least int, required bool) int {
	v := f.text(field)
	if v == "" {
		if required {
			f.errs.add(field, label+" is required")
		}
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		f.errs.add(field, label+" must be a whole number")
		return 0
	}
	if n < least {
		f.errs.add(field, label+" must be at least "+strconv.Itoa(least))
	}
	return n
}

func (f *formReader) result(p gateway.Payload) (gateway.Payload, ValidationErrors) {
	if len(f.errs) > 0 {
		return nil, f.errs
	}
	return p, nil
}

// ParseProduct validates the add-product form. A manual ID is uppercased
// and only sent when auto-generation is off.
func ParseProduct(values url.Values) (gateway.Payload, ValidationErrors) {
	f := &formReader{values: values}
	p := gateway.Payload{}

	if !values.Has(views.FieldAutoProductID) {
		if id := strings.ToUpper(f.text(records.FieldProductID)); id != "" {
			if productIDPattern.MatchString(id) {
				p[records.FieldProductID] = id
			} else {
				f.errs.add(records.FieldProductID, "Product ID must be 3 to 20 characters of A-Z, 0-9 or -")
			}
		}
	}

	p[records.FieldProductName] = f.required(records.FieldProductName, "Name")
	p[records.FieldCategory] = f.required(records.FieldCategory, "Category")
	p[records.FieldSpec] = f.text(records.FieldSpec)
	p[records.FieldUnit] = f.required(records.FieldUnit, "Unit")
	p[records.FieldCostPrice] = f.decimal(records.FieldCostPrice, "Cost", true)
	p[records.FieldSellingPrice] = f.decimal(records.FieldSellingPrice, "Price", true)
	p[records.FieldMinStock] = f.integer(records.FieldMinStock, "Minimum stock", 0, false)
	p[records.FieldMaxStock] = f.integer(records.FieldMaxStock, "Maximum stock", 0, false)
	p[records.FieldNotes] = f.text(records.FieldNotes)
	return f.result(p)
}

func parseContact(values url.Values, nameField, nameLabel string) (gateway.Payload, ValidationErrors) {
	f := &formReader{values: values}
	return f.result(gateway.Payload{
		nameField:                  f.required(nameField, nameLabel),
		records.FieldContactPerson: f.required(records.FieldContactPerson, "Contact"),
		records.FieldPhone:         f.required(records.FieldPhone, "Phone"),
		records.FieldAddress:       f.required(records.FieldAddress, "Address"),
		records.FieldNotes:         f.text(records.FieldNotes),
	})
}

// ParseSupplier validates the add-supplier form.
func ParseSupplier(values url.Values) (gateway.Payload, ValidationErrors) {
	return parseContact(values, records.FieldSupplierName, "Supplier name")
}

// ParseCustomer validates the add-customer form.
func ParseCustomer(values url.Values) (gateway.Payload, ValidationErrors) {
	return parseContact(values, records.FieldCustomerName, "Customer name")
}

func parseMovement(values url.Values, partyField, partyLabel, qtyField string) (gateway.Payload, ValidationErrors) {
	f := &formReader{values: values}
	return f.result(gateway.Payload{
		records.FieldProductID: f.required(records.FieldProductID, "Product"),
		partyField:             f.required(partyField, partyLabel),
		qtyField:               f.integer(qtyField, "Quantity", 1, true),
		records.FieldUnitPrice: f.decimal(records.FieldUnitPrice, "Unit price", true),
		records.FieldNotes:     f.text(records.FieldNotes),
	})
}

// ParseInbound validates the add-inbound form.
func ParseInbound(values url.Values) (gateway.Payload, ValidationErrors) {
	return parseMovement(values, records.FieldSupplierID, "Supplier", records.FieldInboundQty)
}

// ParseOutbound validates the add-outbound form.
func ParseOutbound(values url.Values) (gateway.Payload, ValidationErrors) {
	return parseMovement(values, records.FieldCustomerID, "Customer", records.FieldOutboundQty)
}
