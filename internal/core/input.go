package core

// TransactionInput holds the fields supplied by a create or update request.
// Nil pointers mean "not supplied". CategorySet distinguishes an explicit null
// category from an omitted one.
type TransactionInput struct {
	CategorySet bool
	CategoryID  *int64
	Amount      *Money
	Description *string
	Date        *Date
	Type        *TransactionType
}

// Apply copies supplied fields onto t. With full set, omitted required fields
// are reported as missing.
func (in TransactionInput) Apply(t *Transaction, full bool, verr *ValidationError) {
	if in.CategorySet {
		t.CategoryID = in.CategoryID
		t.Category = nil
	}
	if in.Amount != nil {
		t.Amount = *in.Amount
	} else if full {
		verr.Add("amount", MsgRequired)
	}
	if in.Description != nil {
		t.Description = *in.Description
	} else if full {
		verr.Add("description", MsgRequired)
	}
	if in.Date != nil {
		t.Date = *in.Date
	} else if full {
		verr.Add("date", MsgRequired)
	}
	if in.Type != nil {
		t.Type = *in.Type
	}
}

// BudgetInput holds the fields supplied by a create or update request.
type BudgetInput struct {
	CategoryID *int64
	Amount     *Money
	Month      *int
	Year       *int
}

// Apply copies supplied fields onto b. With full set, omitted fields are
// reported as missing.
func (in BudgetInput) Apply(b *Budget, full bool, verr *ValidationError) {
	if in.CategoryID != nil {
		b.CategoryID = *in.CategoryID
	} else if full {
		verr.Add("category", MsgRequired)
	}
	if in.Amount != nil {
		b.Amount = *in.Amount
	} else if full {
		verr.Add("amount", MsgRequired)
	}
	if in.Month != nil {
		b.Month = *in.Month
	} else if full {
		verr.Add("month", MsgRequired)
	}
	if in.Year != nil {
		b.Year = *in.Year
	} else if full {
		verr.Add("year", MsgRequired)
	}
}

// RegisterInput is the payload of a registration.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// ProfileInput holds the profile fields supplied by an update.
type ProfileInput struct {
	FirstName *string
	LastName  *string
	Email     *string
}
