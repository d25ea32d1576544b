// Package branch defines the branch record owned by the MFI.
package branch

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/mfi-api/internal/domain"
)

// Status is the operational state of a branch.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusInactive
}

// Branch is an office of the MFI. Name is unique.
type Branch struct {
	ID          string    `json:"_id"`
	MFIID       string    `json:"MFI"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	OpeningDate *Date     `json:"opening_date,omitempty"`
	BranchType  string    `json:"branch_type,omitempty"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	Status      Status    `json:"status"`
	Weredas     []string  `json:"weredas"`
	CreatedAt   time.Time `json:"date_created"`
	UpdatedAt   time.Time `json:"last_modified"`
}

// Date is a calendar date that also accepts full RFC 3339 timestamps on input.
type Date struct {
	time.Time
}

const dateLayout = "2006-01-02"

// UnmarshalJSON accepts "2006-01-02" or an RFC 3339 timestamp.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	t, err := ParseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

// MarshalJSON renders the date as "2006-01-02".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.Format(dateLayout))
}

// ParseDate parses "2006-01-02" or an RFC 3339 timestamp.
func ParseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, domain.Invalid("opening_date", "opening_date must be a date (YYYY-MM-DD)")
	}
	return t, nil
}

// CreateRequest is the input for adding a branch to the MFI.
type CreateRequest struct {
	Name        string   `json:"name"`
	Location    string   `json:"location"`
	OpeningDate *Date    `json:"opening_date"`
	BranchType  string   `json:"branch_type"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Status      Status   `json:"status"`
	Weredas     []string `json:"weredas"`
}

// Validate reports every missing or malformed field at once.
func (r *CreateRequest) Validate() error {
	var v domain.ValidationError
	v.Require("name", r.Name, "Branch Name is Empty")
	v.Require("location", r.Location, "Branch Location is Empty")
	if r.Status != "" && !r.Status.Valid() {
		v.Add("status", "status must be active or inactive")
	}
	return v.OrNil()
}

// Record converts the request into a Branch owned by mfiID.
func (r *CreateRequest) Record(mfiID string) *Branch {
	status := r.Status
	if status == "" {
		status = StatusActive
	}
	weredas := r.Weredas
	if weredas == nil {
		weredas = []string{}
	}
	return &Branch{
		MFIID:       mfiID,
		Name:        strings.TrimSpace(r.Name),
		Location:    r.Location,
		OpeningDate: r.OpeningDate,
		BranchType:  r.BranchType,
		Email:       r.Email,
		Phone:       r.Phone,
		Status:      status,
		Weredas:     weredas,
	}
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Name        *string   `json:"name,omitempty"`
	Location    *string   `json:"location,omitempty"`
	OpeningDate *Date     `json:"opening_date,omitempty"`
	BranchType  *string   `json:"branch_type,omitempty"`
	Email       *string   `json:"email,omitempty"`
	Phone       *string   `json:"phone,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Weredas     *[]string `json:"weredas,omitempty"`
}

// Normalize trims the name the same way CreateRequest.Record does, so a
// rename cannot dodge the duplicate-name check with surrounding spaces.
func (p *Patch) Normalize() {
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		p.Name = &name
	}
}

// Diff returns the set fields keyed by their column name. The name is trimmed.
func (p *Patch) Diff() map[string]any {
	d := make(map[string]any)
	setStr := func(col string, v *string) {
		if v != nil {
			d[col] = *v
		}
	}
	if p.Name != nil {
		d["name"] = strings.TrimSpace(*p.Name)
	}
	setStr("location", p.Location)
	setStr("branch_type", p.BranchType)
	setStr("email", p.Email)
	setStr("phone", p.Phone)
	if p.OpeningDate != nil {
		d["opening_date"] = p.OpeningDate.Time
	}
	if p.Status != nil {
		d["status"] = string(*p.Status)
	}
	if p.Weredas != nil {
		d["weredas"] = *p.Weredas
	}
	return d
}

// Validate rejects empty patches, blanked required fields and unknown statuses.
func (p *Patch) Validate() error {
	if len(p.Diff()) == 0 {
		return domain.Invalid("body", "no updatable fields given")
	}
	var v domain.ValidationError
	if p.Name != nil {
		v.Require("name", *p.Name, "Branch Name is Empty")
	}
	if p.Location != nil {
		v.Require("location", *p.Location, "Branch Location is Empty")
	}
	if p.Status != nil && !p.Status.Valid() {
		v.Add("status", "status must be active or inactive")
	}
	return v.OrNil()
}

// StatusRequest changes a branch's status.
type StatusRequest struct {
	Status Status `json:"status"`
}

// Validate requires a known status.
func (r *StatusRequest) Validate() error {
	if r.Status == "" {
		return domain.Invalid("status", "Status should not be empty")
	}
	if !r.Status.Valid() {
		return domain.Invalid("status", "status must be active or inactive")
	}
	return nil
}

// Filter narrows a branch collection. Fields maps column names to exact
// values; a non-nil IDs restricts the result to those branch ids.
type Filter struct {
	Fields map[string]string
	IDs    []string
}

// searchColumns maps accepted query parameters to their storage columns.
var searchColumns = map[string]string{
	"_id":         "id",
	"MFI":         "mfi_id",
	"name":        "name",
	"location":    "location",
	"branch_type": "branch_type",
	"status":      "status",
	"email":       "email",
	"phone":       "phone",
}

// idColumns are the search columns holding uuids.
var idColumns = map[string]bool{"id": true, "mfi_id": true}

// ParseSearch converts search query parameters into a Filter. At least one
// parameter is required and every parameter must be a searchable field.
// Id parameters must be uuids.
func ParseSearch(q url.Values) (Filter, error) {
	if len(q) == 0 {
		return Filter{}, domain.Invalid("query", "Search Query is missing")
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f := Filter{Fields: make(map[string]string, len(q))}
	var v domain.ValidationError
	for _, k := range keys {
		col, ok := searchColumns[k]
		if !ok {
			v.Add(k, "cannot search by "+k)
			continue
		}
		val := q.Get(k)
		if idColumns[col] {
			if _, err := uuid.Parse(val); err != nil {
				v.Add(k, k+" must be a valid id")
				continue
			}
		}
		f.Fields[col] = val
	}
	return f, v.OrNil()
}

// SortFields lists the columns a paginated branch listing may be sorted by.
var SortFields = map[string]bool{
	"name":          true,
	"location":      true,
	"branch_type":   true,
	"status":        true,
	"opening_date":  true,
	"date_created":  true,
	"last_modified": true,
}
