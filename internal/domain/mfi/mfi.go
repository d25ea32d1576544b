// Package mfi defines the microfinance institution record, the root aggregate
// that owns every branch.
package mfi

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/Strob0t/mfi-api/internal/domain"
)

// HeadOfficeName is the name and branch type of the branch created together
// with the MFI.
const HeadOfficeName = "Head Office"

// MFI is the single institution record. Branches lists the ids of every branch
// whose MFI reference is this record, in creation order.
type MFI struct {
	ID                string    `json:"_id"`
	Name              string    `json:"name"`
	Logo              string    `json:"logo"`
	Location          string    `json:"location"`
	EstablishmentYear int       `json:"establishment_year,omitempty"`
	WebsiteLink       string    `json:"website_link,omitempty"`
	Email             string    `json:"email,omitempty"`
	Phone             string    `json:"phone,omitempty"`
	ContactPerson     string    `json:"contact_person,omitempty"`
	Branches          []string  `json:"branches"`
	IsActive          bool      `json:"is_active"`
	CreatedAt         time.Time `json:"date_created"`
	UpdatedAt         time.Time `json:"last_modified"`
}

// Query selects a single MFI. An empty ID matches any MFI, which is how the
// singleton is looked up. ForUpdate locks the row until the enclosing
// transaction ends.
type Query struct {
	ID        string
	ForUpdate bool
}

// Upload is a logo file received with a multipart create request.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// CreateRequest is the input for bootstrapping the MFI. Either Logo (an
// already hosted URL) or LogoFile must be set.
type CreateRequest struct {
	Name              string  `json:"name"`
	Logo              string  `json:"logo"`
	LogoFile          *Upload `json:"-"`
	Location          string  `json:"location"`
	EstablishmentYear int     `json:"establishment_year"`
	WebsiteLink       string  `json:"website_link"`
	Email             string  `json:"email"`
	Phone             string  `json:"phone"`
	ContactPerson     string  `json:"contact_person"`
}

// Validate reports every missing required field at once.
func (r *CreateRequest) Validate() error {
	var v domain.ValidationError
	v.Require("name", r.Name, "MFI Name is Empty")
	if r.LogoFile == nil {
		v.Require("logo", r.Logo, "MFI Logo is Empty")
	}
	v.Require("location", r.Location, "MFI Location is Empty")
	return v.OrNil()
}

// Record converts the request into an MFI ready to be stored.
func (r *CreateRequest) Record() *MFI {
	return &MFI{
		Name:              strings.TrimSpace(r.Name),
		Logo:              r.Logo,
		Location:          r.Location,
		EstablishmentYear: r.EstablishmentYear,
		WebsiteLink:       r.WebsiteLink,
		Email:             r.Email,
		Phone:             r.Phone,
		ContactPerson:     r.ContactPerson,
		Branches:          []string{},
		IsActive:          true,
	}
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Name              *string `json:"name,omitempty"`
	Logo              *string `json:"logo,omitempty"`
	Location          *string `json:"location,omitempty"`
	EstablishmentYear *int    `json:"establishment_year,omitempty"`
	WebsiteLink       *string `json:"website_link,omitempty"`
	Email             *string `json:"email,omitempty"`
	Phone             *string `json:"phone,omitempty"`
	ContactPerson     *string `json:"contact_person,omitempty"`
	IsActive          *bool   `json:"is_active,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p *Patch) Empty() bool {
	return len(p.Diff()) == 0
}

// Validate rejects empty patches and blanking of required fields.
func (p *Patch) Validate() error {
	if p.Empty() {
		return domain.Invalid("body", "no updatable fields given")
	}
	var v domain.ValidationError
	if p.Name != nil {
		v.Require("name", *p.Name, "MFI Name is Empty")
	}
	if p.Logo != nil {
		v.Require("logo", *p.Logo, "MFI Logo is Empty")
	}
	if p.Location != nil {
		v.Require("location", *p.Location, "MFI Location is Empty")
	}
	return v.OrNil()
}

// Diff returns the set fields keyed by their column name.
func (p *Patch) Diff() map[string]any {
	d := make(map[string]any)
	setStr := func(col string, v *string) {
		if v != nil {
			d[col] = *v
		}
	}
	setStr("name", p.Name)
	setStr("logo", p.Logo)
	setStr("location", p.Location)
	setStr("website_link", p.WebsiteLink)
	setStr("email", p.Email)
	setStr("phone", p.Phone)
	setStr("contact_person", p.ContactPerson)
	if p.EstablishmentYear != nil {
		d["establishment_year"] = *p.EstablishmentYear
	}
	if p.IsActive != nil {
		d["is_active"] = *p.IsActive
	}
	return d
}

// StatusRequest toggles the MFI's active flag.
type StatusRequest struct {
	IsActive *bool `json:"is_active"`
}

// Validate requires is_active to be present.
func (r *StatusRequest) Validate() error {
	if r.IsActive == nil {
		return domain.Invalid("is_active", "is_active should not be empty")
	}
	return nil
}

// Patch converts the status request into a Patch.
func (r *StatusRequest) Patch() Patch {
	return Patch{IsActive: r.IsActive}
}

// SortFields lists the columns a paginated MFI listing may be sorted by.
var SortFields = map[string]bool{
	"name":               true,
	"location":           true,
	"establishment_year": true,
	"date_created":       true,
	"last_modified":      true,
}

// LogoAssetName builds the object name for an uploaded logo:
// <NAME>_<12 hex chars><ext>, where NAME is the trimmed, upper-cased MFI name
// with whitespace runs joined by underscores. Path separators and a leading
// dot become underscores so the name is a single, visible path element.
func LogoAssetName(name, filename string, rnd io.Reader) (string, error) {
	if rnd == nil {
		rnd = rand.Reader
	}
	b := make([]byte, 6)
	if _, err := io.ReadFull(rnd, b); err != nil {
		return "", fmt.Errorf("logo asset id: %w", err)
	}
	base := assetSafe.Replace(strings.Join(strings.Fields(strings.ToUpper(name)), "_"))
	if strings.HasPrefix(base, ".") {
		base = "_" + base[1:]
	}
	return base + "_" + hex.EncodeToString(b) + assetSafe.Replace(filepath.Ext(filename)), nil
}

var assetSafe = strings.NewReplacer("/", "_", `\`, "_")
