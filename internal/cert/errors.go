// 文件路径: internal/cert/errors.go
// 模块说明: 这是 internal 模块里的 errors 逻辑，定义证书获取失败的分类。
package cert

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Cause 把底层签发失败归为操作者可处理的四类。
type Cause string

const (
	CauseDNS       Cause = "dns"
	CauseNetwork   Cause = "network"
	CauseRateLimit Cause = "rate-limit"
	CauseUnknown   Cause = "unknown"
)

// AcquisitionError reports a terminal certificate issuance failure.
type AcquisitionError struct {
	Domain string
	Cause  Cause
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("cert: acquisition failed for %s (%s): %v / 证书申请失败", e.Domain, e.Cause, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// Hint 返回对应失败类别的排查建议(原脚本的提示语)。
func (e *AcquisitionError) Hint() string {
	switch e.Cause {
	case CauseDNS:
		return "请确认域名已解析到本机 IP / check that the domain resolves to this host"
	case CauseNetwork:
		return "请确认 80 端口可从公网访问且防火墙放行 / check port 80 reachability and firewall rules"
	case CauseRateLimit:
		return "触发 CA 频率限制，请稍后重试 / CA rate limit hit, retry later"
	default:
		return "请查看日志中的完整错误输出 / inspect the full error output in the logs"
	}
}

// Classify 根据错误内容推断失败类别。
func Classify(err error) Cause {
	if err == nil {
		return CauseUnknown
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CauseDNS
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "no such host"),
		strings.Contains(msg, "nxdomain"),
		strings.Contains(msg, "dns problem"),
		strings.Contains(msg, "acme:error:dns"):
		return CauseDNS
	case strings.Contains(msg, "ratelimited"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "too many certificates"),
		strings.Contains(msg, "too many requests"):
		return CauseRateLimit
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "i/o timeout"),
		strings.Contains(msg, "unreachable"),
		strings.Contains(msg, "acme:error:connection"):
		return CauseNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return CauseNetwork
	}
	return CauseUnknown
}
