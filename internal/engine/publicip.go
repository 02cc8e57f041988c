// 文件路径: internal/engine/publicip.go
// 模块说明: 公网 IP 探测，Reality 分享链接需要可达地址而非域名。
package engine

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// ipEndpoints 纯文本返回调用方公网 IP 的端点，依序尝试。
var ipEndpoints = []string{
	"https://ifconfig.me/ip",
	"https://icanhazip.com",
	"https://api.ipify.org",
}

// PublicIP 返回主机公网 IP。所有端点均失败时返回最后一个错误。
func PublicIP(ctx context.Context, client *http.Client) (string, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	var lastErr error
	for _, endpoint := range ipEndpoints {
		ip, err := fetchIP(ctx, client, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		return ip, nil
	}
	return "", fmt.Errorf("engine: public ip lookup failed / 公网 IP 探测失败: %w", lastErr)
}

func fetchIP(ctx context.Context, client *http.Client, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("engine: %s 返回状态 %d", endpoint, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 256))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(body))
	if net.ParseIP(text) == nil {
		return "", fmt.Errorf("engine: %s 返回内容不是 IP: %q", endpoint, text)
	}
	return text, nil
}
