package email

import (
	"fmt"
	"log/slog"
	"strings"
)

// joinAddresses renders addresses the way single-field transports expect them.
func joinAddresses(addrs []Address) string {
	parts := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Email == "" {
			continue
		}
		parts = append(parts, a.String())
	}
	return strings.Join(parts, ", ")
}

// resolveFrom picks the message sender, falling back to the provider default.
func resolveFrom(from *Address, def Address) (Address, error) {
	if from != nil && strings.TrimSpace(from.Email) != "" {
		return *from, nil
	}
	if strings.TrimSpace(def.Email) != "" {
		return def, nil
	}
	return Address{}, ErrNoSender
}

// checkRecipients rejects empty recipient lists before any network call.
func checkRecipients(to []Address) error {
	for _, a := range to {
		if strings.TrimSpace(a.Email) != "" {
			return nil
		}
	}
	return ErrNoRecipients
}

// guard runs one transport call and converts a panic into a failed Result.
func guard(log *slog.Logger, provider string, send func() Result) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("email_transport_panic", "provider", provider, "panic", fmt.Sprint(r))
			res = Failed("Exception occurred while sending email", fmt.Sprint(r), 0)
		}
	}()
	return send()
}

func formattedAddresses(addrs []Address) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a.Email != "" {
			out = append(out, a.String())
		}
	}
	return out
}
