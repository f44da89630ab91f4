package dto

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cesargomez89/navistream/internal/domain"
)

const maxTextField = 512

// DescriptorRequest is a track descriptor as received over HTTP. Ids are
// "tag:value" strings.
type DescriptorRequest struct {
	Artist     string   `json:"artist"`
	Title      string   `json:"title"`
	Album      string   `json:"album,omitempty"`
	IDs        []string `json:"ids,omitempty"`
	ArtworkURL string   `json:"artwork_url,omitempty"`
}

// DescriptorFromQuery reads artist, title, album, artwork_url and any
// number of id parameters.
func DescriptorFromQuery(q url.Values) DescriptorRequest {
	return DescriptorRequest{
		Artist:     q.Get("artist"),
		Title:      q.Get("title"),
		Album:      q.Get("album"),
		IDs:        q["id"],
		ArtworkURL: q.Get("artwork_url"),
	}
}

func (r DescriptorRequest) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, validateLength("artist", r.Artist, maxTextField)...)
	errs = append(errs, validateLength("title", r.Title, maxTextField)...)
	errs = append(errs, validateLength("album", r.Album, maxTextField)...)
	errs = append(errs, validateURL("artwork_url", r.ArtworkURL)...)

	seen := make(map[domain.ProviderTag]bool)
	for _, raw := range r.IDs {
		id, err := domain.ParseExternalID(raw)
		if err != nil {
			errs = append(errs, ValidationError{Field: "id", Message: fmt.Sprintf("%q must be provider_tag:value", raw)})
			continue
		}
		if seen[id.Provider] {
			errs = append(errs, ValidationError{Field: "id", Message: fmt.Sprintf("duplicate id for %s", id.Provider)})
		}
		seen[id.Provider] = true
	}

	if len(r.IDs) == 0 && (strings.TrimSpace(r.Artist) == "" || strings.TrimSpace(r.Title) == "") {
		errs = append(errs, ValidationError{Field: "descriptor", Message: "an id or both artist and title are required"})
	}
	return errs
}

// ToDomain validates r and converts it. Failures carry domain.ErrInvalidRequest.
func (r DescriptorRequest) ToDomain() (domain.TrackDescriptor, error) {
	if errs := r.Validate(); len(errs) > 0 {
		return domain.TrackDescriptor{}, fmt.Errorf("%w: %s", domain.ErrInvalidRequest, ToResponse(errs))
	}
	d := domain.TrackDescriptor{
		Artist:         strings.TrimSpace(r.Artist),
		Title:          strings.TrimSpace(r.Title),
		Album:          strings.TrimSpace(r.Album),
		ArtworkHintURL: r.ArtworkURL,
	}
	for _, raw := range r.IDs {
		id, _ := domain.ParseExternalID(raw)
		d.IDs = append(d.IDs, id)
	}
	return d, nil
}
