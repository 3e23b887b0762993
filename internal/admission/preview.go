package admission

import (
	"strconv"
	"strings"

	"github.com/noah-isme/sma-console/pkg/export"
)

// PreviewDocument lays out the wizard state as printed on the preview step.
func PreviewDocument(snap Snapshot) export.Document {
	doc := export.Document{
		Title:    "Admission preview",
		Subtitle: "Please review the details below before confirming",
		Footer:   "Fees are indicative until the application is confirmed by the school office.",
	}

	if f := snap.Family; f != nil {
		doc.Sections = append(doc.Sections, export.Section{
			Heading: "Family",
			Fields: []export.Field{
				{Label: "Father / guardian", Value: f.FatherName},
				{Label: "Mother", Value: f.MotherName},
				{Label: "Email", Value: f.Email},
				{Label: "Phone", Value: f.Phone},
				{Label: "Parent category", Value: titleCase(string(f.ParentCategory))},
			},
		})
	}
	if s := snap.Student; s != nil {
		doc.Sections = append(doc.Sections, export.Section{
			Heading: "Student",
			Fields: []export.Field{
				{Label: "Name", Value: strings.TrimSpace(s.FirstName + " " + s.LastName)},
				{Label: "Date of birth", Value: s.DateOfBirth},
				{Label: "Gender", Value: titleCase(s.Gender)},
				{Label: "Class", Value: strconv.FormatInt(s.ClassID, 10)},
				{Label: "Documents", Value: strconv.Itoa(len(s.Documents)) + " attached"},
			},
		})
	}
	if t := snap.Transport; t != nil {
		route := "Not required"
		if t.Required {
			route = "Route " + strconv.FormatInt(t.RouteID, 10)
			if t.PickUp != "" {
				route += ", pick-up at " + t.PickUp
			}
		}
		doc.Sections = append(doc.Sections, export.Section{
			Heading: "Transport",
			Fields:  []export.Field{{Label: "Transport", Value: route}},
		})
	}

	fees := snap.Fees
	discountLabel := "Discount"
	if fees.DiscountPercent > 0 {
		discountLabel = "Discount (" + strconv.FormatInt(fees.DiscountPercent, 10) + "%)"
	}
	doc.Table = &export.Dataset{
		Headers: []string{"Item", "Amount"},
		Rows: []map[string]string{
			{"Item": "Base fee", "Amount": fees.BaseFee.String()},
			{"Item": discountLabel, "Amount": "-" + fees.Discount.String()},
			{"Item": "Transport", "Amount": fees.Transport.String()},
			{"Item": "Total", "Amount": fees.Total.String()},
		},
	}
	return doc
}

// RenderPreview renders the preview document as PDF.
func RenderPreview(snap Snapshot) ([]byte, error) {
	return export.NewPDFExporter().Render(PreviewDocument(snap))
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
