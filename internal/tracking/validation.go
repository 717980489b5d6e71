package tracking

import "fmt"

const (
	maxMetaLength    = 500
	viewerHashLength = 16
)

// ValidateAdEventPayload validates ad event payload fields before they
// reach storage. Malformed payloads are dead-lettered, not inserted.
func ValidateAdEventPayload(payload AdEventPayload) error {
	if payload.AdID == "" {
		return fmt.Errorf("ad_id is required")
	}
	if payload.Type != "impression" && payload.Type != "click" {
		return fmt.Errorf("unknown event type %q", payload.Type)
	}
	if payload.Placement == "" {
		return fmt.Errorf("placement is required")
	}
	if payload.ViewerHash == "" {
		return fmt.Errorf("viewer_hash is required")
	}
	if len(payload.ViewerHash) != viewerHashLength || !isHex(payload.ViewerHash) {
		return fmt.Errorf("viewer_hash must be %d hex chars", viewerHashLength)
	}
	if payload.OccurredAt <= 0 {
		return fmt.Errorf("occurred_at must be set")
	}
	if len(payload.PageURL) > maxMetaLength {
		return fmt.Errorf("page_url too long")
	}
	if len(payload.UserAgent) > maxMetaLength {
		return fmt.Errorf("user_agent too long")
	}
	return nil
}

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			continue
		}
		return false
	}
	return true
}
