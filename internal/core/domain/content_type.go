package domain

import "fmt"

// ContentType partitions the vector space. Records of different content
// types are never compared by a search unless the caller asks for it.
type ContentType string

// Supported content types.
const (
	// ContentTypeResume is a candidate résumé.
	ContentTypeResume ContentType = "resume"

	// ContentTypeJob is a job posting.
	ContentTypeJob ContentType = "job"

	// ContentTypeCompany is a company profile.
	ContentTypeCompany ContentType = "company"

	// ContentTypeGeneric is any other content.
	ContentTypeGeneric ContentType = "generic"
)

// IsValid returns true if the content type is recognised.
func (c ContentType) IsValid() bool {
	switch c {
	case ContentTypeResume, ContentTypeJob, ContentTypeCompany, ContentTypeGeneric:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (c ContentType) String() string {
	return string(c)
}

// Description returns a human-readable description of the content type.
func (c ContentType) Description() string {
	switch c {
	case ContentTypeResume:
		return "Résumé"
	case ContentTypeJob:
		return "Job posting"
	case ContentTypeCompany:
		return "Company profile"
	case ContentTypeGeneric:
		return "Generic content"
	default:
		return unknownDescription
	}
}

// ParseContentType converts a string into a ContentType.
func ParseContentType(s string) (ContentType, error) {
	c := ContentType(s)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidContentType, s)
	}
	return c, nil
}

// AllContentTypes returns every supported content type in a stable order.
func AllContentTypes() []ContentType {
	return []ContentType{
		ContentTypeResume,
		ContentTypeJob,
		ContentTypeCompany,
		ContentTypeGeneric,
	}
}
