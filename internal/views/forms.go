package views

import (
	"github.com/jetsetgo/warehouse-console/internal/config"
	"github.com/jetsetgo/warehouse-console/internal/records"
)

// Field input types
const (
	InputText     = "text"
	InputNumber   = "number"
	InputTextarea = "textarea"
	InputSelect   = "select"
	InputCheckbox = "checkbox"
	InputPassword = "password"
)

// FieldAutoProductID is the checkbox that lets the server assign the product ID.
const FieldAutoProductID = "autoProductId"

// Option is one choice of a select field.
type Option struct {
	Value string
	Label string
}

// Field is one form input.
type Field struct {
	Name        string
	Label       string
	Type        string
	Value       string
	Error       string
	Hint        string
	Placeholder string
	Pattern     string
	Min         string
	Step        string
	Required    bool
	Checked     bool
	Options     []Option
}

// Form is a rendered modal form.
type Form struct {
	Resource string
	Title    string
	Submit   string
	Fields   []Field
	Error    string
}

// FormInput carries cached lists for dropdowns and any submitted values and
// field errors to echo back.
type FormInput struct {
	Products  []records.Row
	Suppliers []records.Row
	Customers []records.Row
	Values    map[string]string
	Errors    map[string]string
}

func (in FormInput) fill(f Field) Field {
	if v, ok := in.Values[f.Name]; ok {
		f.Value = v
	}
	f.Error = in.Errors[f.Name]
	return f
}

func options(rows []records.Row, idField, nameField string) []Option {
	opts := make([]Option, 0, len(rows))
	for _, r := range rows {
		id := r.String(idField)
		if id == "" {
			continue
		}
		label := r.String(nameField)
		if label == "" {
			label = id
		}
		opts = append(opts, Option{Value: id, Label: label})
	}
	return opts
}

func notesField() Field {
	return Field{Name: records.FieldNotes, Label: "Notes", Type: InputTextarea}
}

// ProductForm is the add-product form. The ID input is only used when the
// auto-generate box is unchecked.
func ProductForm(in FormInput) Form {
	auto := Field{
		Name:    FieldAutoProductID,
		Label:   "Generate product ID automatically",
		Type:    InputCheckbox,
		Hint:    "Uncheck to enter an ID: A-Z, 0-9 and -, 3 to 20 characters",
		Checked: true,
	}
	if in.Values != nil {
		_, auto.Checked = in.Values[FieldAutoProductID]
	}

	fields := []Field{
		auto,
		{Name: records.FieldProductID, Label: "Product ID", Type: InputText, Placeholder: "e.g. ABC-001", Pattern: `[A-Z0-9\-]{3,20}`},
		{Name: records.FieldProductName, Label: "Name", Type: InputText, Required: true},
		{Name: records.FieldCategory, Label: "Category", Type: InputText, Required: true},
		{Name: records.FieldSpec, Label: "Spec", Type: InputText},
		{Name: records.FieldUnit, Label: "Unit", Type: InputText, Required: true},
		{Name: records.FieldCostPrice, Label: "Cost", Type: InputNumber, Step: "0.01", Required: true},
		{Name: records.FieldSellingPrice, Label: "Price", Type: InputNumber, Step: "0.01", Required: true},
		{Name: records.FieldMinStock, Label: "Minimum stock", Type: InputNumber, Value: "0", Required: true},
		{Name: records.FieldMaxStock, Label: "Maximum stock", Type: InputNumber, Value: "0", Required: true},
		notesField(),
	}
	for i := 1; i < len(fields); i++ {
		fields[i] = in.fill(fields[i])
	}
	return Form{Resource: config.EndpointProducts, Title: "Add product", Submit: "Add", Fields: fields}
}

func contactForm(resource, title, nameField, nameLabel string, in FormInput) Form {
	fields := []Field{
		{Name: nameField, Label: nameLabel, Type: InputText, Required: true},
		{Name: records.FieldContactPerson, Label: "Contact", Type: InputText, Required: true},
		{Name: records.FieldPhone, Label: "Phone", Type: InputText, Required: true},
		{Name: records.FieldAddress, Label: "Address", Type: InputText, Required: true},
		notesField(),
	}
	for i := range fields {
		fields[i] = in.fill(fields[i])
	}
	return Form{Resource: resource, Title: title, Submit: "Add", Fields: fields}
}

// SupplierForm is the add-supplier form.
func SupplierForm(in FormInput) Form {
	return contactForm(config.EndpointSuppliers, "Add supplier", records.FieldSupplierName, "Supplier name", in)
}

// CustomerForm is the add-customer form.
func CustomerForm(in FormInput) Form {
	return contactForm(config.EndpointCustomers, "Add customer", records.FieldCustomerName, "Customer name", in)
}

func movementForm(resource, title, submit, partyField, partyLabel, qtyField string, parties []Option, in FormInput) Form {
	fields := []Field{
		{Name: records.FieldProductID, Label: "Product", Type: InputSelect, Required: true,
			Options: options(in.Products, records.FieldProductID, records.FieldProductName)},
		{Name: partyField, Label: partyLabel, Type: InputSelect, Required: true, Options: parties},
		{Name: qtyField, Label: "Quantity", Type: InputNumber, Min: "1", Required: true},
		{Name: records.FieldUnitPrice, Label: "Unit price", Type: InputNumber, Step: "0.01", Min: "0", Required: true},
		notesField(),
	}
	for i := range fields {
		fields[i] = in.fill(fields[i])
	}
	return Form{Resource: resource, Title: title, Submit: submit, Fields: fields}
}

// InboundForm is the add-inbound form; its dropdowns come from the cached
// products and suppliers.
func InboundForm(in FormInput) Form {
	return movementForm(config.EndpointInbound, "Add inbound", "Add inbound",
		records.FieldSupplierID, "Supplier", records.FieldInboundQty,
		options(in.Suppliers, records.FieldSupplierID, records.FieldSupplierName), in)
}

// OutboundForm is the add-outbound form.
func OutboundForm(in FormInput) Form {
	return movementForm(config.EndpointOutbound, "Add outbound", "Add outbound",
		records.FieldCustomerID, "Customer", records.FieldOutboundQty,
		options(in.Customers, records.FieldCustomerID, records.FieldCustomerName), in)
}

// FormFor dispatches on the resource name. Inventory has no create form.
func FormFor(resource string, in FormInput) (Form, bool) {
	switch resource {
	case config.EndpointProducts:
		return ProductForm(in), true
	case config.EndpointSuppliers:
		return SupplierForm(in), true
	case config.EndpointCustomers:
		return CustomerForm(in), true
	case config.EndpointInbound:
		return InboundForm(in), true
	case config.EndpointOutbound:
		return OutboundForm(in), true
	}
	return Form{}, false
}
