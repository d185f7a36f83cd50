package bulkops

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"

	"bulkops/internal/domain"
)

func newCreateSandboxRequest(sandboxID, operationName, colorHex string, ctxInfo domain.ContextInfo) domain.CreateSandboxRequest {
	return domain.CreateSandboxRequest{
		Description:   "Sandbox for BulkOperation - " + operationName,
		ColorHex:      colorHex,
		SandboxID:     sandboxID,
		Name:          "Bulk Operation - " + operationName,
		ApplicationID: ctxInfo.ApplicationID,
		TenantID:      ctxInfo.TenantID,
	}
}

// SandboxIdempotencyKey is the upper-case hex MD5 of the request's canonical form.
func SandboxIdempotencyKey(req domain.CreateSandboxRequest) string {
	sum := md5.Sum([]byte(req.String()))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// RandomColorHex returns a "#rrggbb" color for the sandbox badge.
func RandomColorHex() string {
	return fmt.Sprintf("#%06x", rand.Intn(0xffffff+1))
}
