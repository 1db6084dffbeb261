package uptime

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Classification is the taxonomy entry derived from a failed probe.
type Classification struct {
	Category ErrorCategory
	Message  string
	Code     string
}

// ClassifyError maps a transport error onto exactly one category. Unknown
// errors keep their raw message.
func ClassifyError(err error) Classification {
	if err == nil {
		return Classification{}
	}

	var invalid x509.CertificateInvalidError
	if errors.As(err, &invalid) {
		if invalid.Reason == x509.Expired {
			return Classification{CategoryCertificateExpired, "SSL certificate expired", "CERT_EXPIRED"}
		}
		return Classification{CategoryCertificateVerification, "SSL certificate verification failed", "CERT_INVALID"}
	}
	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var verification *tls.CertificateVerificationError
	if errors.As(err, &unknownAuthority) || errors.As(err, &hostname) || errors.As(err, &verification) {
		return Classification{CategoryCertificateVerification, "SSL certificate verification failed", "CERT_UNVERIFIED"}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && !dnsErr.IsTimeout {
		return Classification{CategoryDNSFailure, "DNS resolution failed", "ENOTFOUND"}
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return Classification{CategoryConnectionRefused, "Connection refused", "ECONNREFUSED"}
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return Classification{CategoryConnectionReset, "Connection reset", "ECONNRESET"}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, syscall.ETIMEDOUT) {
		return Classification{CategoryTimeout, "Request timeout", "ETIMEDOUT"}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Classification{CategoryTimeout, "Request timeout", "ETIMEDOUT"}
	}

	return Classification{CategoryUnknown, err.Error(), ""}
}

// classifyStatus covers completed responses outside 200–399.
func classifyStatus(code int) Classification {
	return Classification{
		Category: CategoryHTTPErrorStatus,
		Message:  fmt.Sprintf("HTTP %d", code),
		Code:     fmt.Sprintf("HTTP_%d", code),
	}
}
