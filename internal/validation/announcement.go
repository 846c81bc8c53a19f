// Package validation provides checks applied to wallet provider announcements before they
// reach discovery.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/yourorg/insight-wallet/internal/wallet"
)

// ErrInvalidAnnouncement is wrapped by every validation failure
var ErrInvalidAnnouncement = errors.New("invalid provider announcement")

// reverse-DNS such as io.metamask or com.coinbase.wallet
var rdnsPattern = regexp.MustCompile(`^[a-z0-9-]+(\.[a-z0-9-]+)+$`)

// AnnouncementOptions holds configuration for announcement validation
type AnnouncementOptions struct {
	// MaxNameLength caps the display name shown next to the connect button
	MaxNameLength int

	// MaxIconBytes caps the size of the data URI icon
	MaxIconBytes int

	// RequireIcon rejects announcements without an icon
	RequireIcon bool
}

// DefaultAnnouncementOptions returns sensible defaults
func DefaultAnnouncementOptions() AnnouncementOptions {
	return AnnouncementOptions{
		MaxNameLength: 64,
		MaxIconBytes:  64 << 10,
		RequireIcon:   false,
	}
}

// ValidateAnnouncement checks info with the default options
func ValidateAnnouncement(info wallet.ProviderInfo) error {
	return ValidateAnnouncementWithOptions(info, DefaultAnnouncementOptions())
}

// ValidateAnnouncementWithOptions checks info against opts
func ValidateAnnouncementWithOptions(info wallet.ProviderInfo, opts AnnouncementOptions) error {
	if _, err := uuid.Parse(info.UUID); err != nil {
		return fmt.Errorf("%w: uuid %q: %v", ErrInvalidAnnouncement, info.UUID, err)
	}

	name := strings.TrimSpace(info.Name)
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidAnnouncement)
	}
	if opts.MaxNameLength > 0 && len(name) > opts.MaxNameLength {
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidAnnouncement, opts.MaxNameLength)
	}

	if !rdnsPattern.MatchString(strings.ToLower(info.RDNS)) {
		return fmt.Errorf("%w: rdns %q is not reverse-DNS", ErrInvalidAnnouncement, info.RDNS)
	}

	switch {
	case info.Icon == "" && opts.RequireIcon:
		return fmt.Errorf("%w: missing icon", ErrInvalidAnnouncement)
	case info.Icon == "":
	case !strings.HasPrefix(info.Icon, "data:image/"):
		return fmt.Errorf("%w: icon must be a data:image URI", ErrInvalidAnnouncement)
	case opts.MaxIconBytes > 0 && len(info.Icon) > opts.MaxIconBytes:
		return fmt.Errorf("%w: icon larger than %d bytes", ErrInvalidAnnouncement, opts.MaxIconBytes)
	}
	return nil
}
