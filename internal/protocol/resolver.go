package protocol

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/big"
	"net"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/curve25519"
)

// 原脚本使用的随机端口区间。
const (
	autoPortMin = 20000
	autoPortMax = 60000

	passwordLength    = 16
	shortIDBytes      = 8
	defaultMasquerade = "www.microsoft.com"

	maxAutoPortTries = 64
)

var domainPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9\-]{0,61}[a-zA-Z0-9])?)*$`)
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// forbiddenEmailDomains 是 Let's Encrypt 拒绝注册的测试域名。
var forbiddenEmailDomains = map[string]struct{}{
	"example.com": {}, "example.org": {}, "example.net": {},
	"test.com": {}, "test.org": {}, "test.net": {},
	"localhost.com": {}, "invalid.com": {},
	"invalid": {}, "local": {}, "localhost": {},
}

// Input 是用户的原始选择，空字符串表示交由解析器生成默认值。
type Input struct {
	Protocol Protocol
	Mode     Mode
	Port     int
	UUID     string
	Password string
	Domain   string
	Email    string
	SNI      string
}

// PortRegistry 报告某端口是否已被活跃部署占用。由状态存储实现。
type PortRegistry interface {
	PortInUse(ctx context.Context, port int) (bool, error)
}

// PortProbe 检测端口当前能否绑定。默认实现做一次真实 net.Listen 探测。
type PortProbe func(port int) bool

// Resolver 把原始选择推导为完整的 Spec。纯推导，除端口探测外无副作用。
type Resolver struct {
	registry PortRegistry
	probe    PortProbe
}

// NewResolver 构建参数解析器。registry 可为 nil(不校验活跃会话)。
func NewResolver(registry PortRegistry) *Resolver {
	return &Resolver{registry: registry, probe: probeListen}
}

// WithPortProbe 替换端口探测实现，测试用。
func (r *Resolver) WithPortProbe(probe PortProbe) *Resolver {
	r.probe = probe
	return r
}

// Resolve 校验并补全输入，返回可直接渲染的 Spec。
func (r *Resolver) Resolve(ctx context.Context, in Input) (*Spec, error) {
	cap, ok := Lookup(in.Protocol)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProtocol, in.Protocol)
	}
	mode := in.Mode
	if mode == "" {
		mode = cap.Modes[0]
	}
	if !cap.SupportsMode(mode) {
		return nil, fmt.Errorf("%w: %s + %s", ErrUnsupportedMode, in.Protocol, mode)
	}

	spec := &Spec{Protocol: in.Protocol, Mode: mode}

	if err := r.resolvePort(ctx, in.Port, spec); err != nil {
		return nil, err
	}
	if err := resolveCredential(cap, in, spec); err != nil {
		return nil, err
	}

	switch mode {
	case ModeTLS:
		if err := resolveTLSFields(in, spec); err != nil {
			return nil, err
		}
	case ModeReality:
		if err := resolveRealityFields(in, spec); err != nil {
			return nil, err
		}
	}

	return spec, nil
}

func (r *Resolver) resolvePort(ctx context.Context, port int, spec *Spec) error {
	if port != 0 {
		if port < 1 || port > 65535 {
			return invalidInput("port", fmt.Sprintf("%d out of range 1-65535", port))
		}
		free, err := r.portFree(ctx, port)
		if err != nil {
			return err
		}
		if !free {
			return &PortConflictError{Port: port}
		}
		spec.Port = port
		return nil
	}

	// 随机端口的唯一性由部署记录保证: 已提交部署的端口进入登记表，
	// 后续解析不会再选中。探测监听在返回前就关闭，本身不构成预留，
	// 两次解析之间只有经过登记表才互斥。部署流程串行执行。
	for i := 0; i < maxAutoPortTries; i++ {
		candidate, err := randomInt(autoPortMin, autoPortMax)
		if err != nil {
			return fmt.Errorf("protocol: random port: %w", err)
		}
		free, err := r.portFree(ctx, candidate)
		if err != nil {
			return err
		}
		if free {
			spec.Port = candidate
			return nil
		}
	}
	return fmt.Errorf("protocol: no free port found in %d-%d / 未找到可用端口", autoPortMin, autoPortMax)
}

func (r *Resolver) portFree(ctx context.Context, port int) (bool, error) {
	if r.registry != nil {
		used, err := r.registry.PortInUse(ctx, port)
		if err != nil {
			return false, fmt.Errorf("protocol: query port registry: %w", err)
		}
		if used {
			return false, nil
		}
	}
	if r.probe != nil && !r.probe(port) {
		return false, nil
	}
	return true, nil
}

func resolveCredential(cap Capability, in Input, spec *Spec) error {
	needUUID := cap.Credential == CredUUID || cap.Credential == CredUUIDAndPassword
	needPassword := cap.Credential == CredPassword || cap.Credential == CredUUIDAndPassword

	if needUUID {
		if in.UUID == "" {
			id, err := uuid.NewRandom()
			if err != nil {
				return fmt.Errorf("protocol: generate uuid: %w", err)
			}
			spec.UUID = id.String()
		} else {
			parsed, err := uuid.Parse(in.UUID)
			if err != nil {
				return invalidInput("uuid", err.Error())
			}
			spec.UUID = parsed.String()
		}
	}

	if needPassword {
		if in.Password == "" {
			token, err := randomToken(passwordLength)
			if err != nil {
				return fmt.Errorf("protocol: generate password: %w", err)
			}
			spec.Password = token
		} else {
			if len(in.Password) < 8 {
				return invalidInput("password", "must be at least 8 characters")
			}
			spec.Password = in.Password
		}
	}

	return nil
}

func resolveTLSFields(in Input, spec *Spec) error {
	domain := strings.TrimSpace(strings.ToLower(in.Domain))
	if domain == "" {
		return invalidInput("domain", "required in tls mode")
	}
	if !domainPattern.MatchString(domain) {
		return invalidInput("domain", fmt.Sprintf("%q is not a valid dns name", domain))
	}

	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" {
		return invalidInput("email", "required in tls mode")
	}
	if !emailPattern.MatchString(email) {
		return invalidInput("email", fmt.Sprintf("%q is not a valid address", email))
	}
	if _, forbidden := forbiddenEmailDomains[email[strings.LastIndex(email, "@")+1:]]; forbidden {
		return invalidInput("email", "test domains are rejected by the CA")
	}

	spec.Domain = domain
	spec.Email = email
	spec.SNI = strings.TrimSpace(strings.ToLower(in.SNI))
	if spec.SNI == "" {
		spec.SNI = domain
	}
	return nil
}

func resolveRealityFields(in Input, spec *Spec) error {
	if in.Domain != "" || in.Email != "" {
		return invalidInput("domain/email", "must be empty in reality mode")
	}

	// 每次部署生成全新密钥对，绝不跨会话复用。
	priv, pub, err := generateX25519()
	if err != nil {
		return fmt.Errorf("protocol: generate reality key pair: %w", err)
	}
	shortID, err := randomHex(shortIDBytes)
	if err != nil {
		return fmt.Errorf("protocol: generate short id: %w", err)
	}

	spec.RealityPrivateKey = priv
	spec.RealityPublicKey = pub
	spec.RealityShortID = shortID
	spec.MasqueradeServer = strings.TrimSpace(strings.ToLower(in.SNI))
	if spec.MasqueradeServer == "" {
		spec.MasqueradeServer = defaultMasquerade
	}
	return nil
}

// generateX25519 生成 Reality 所需的 X25519 密钥对(base64 raw-url 编码)。
func generateX25519() (privateKey, publicKey string, err error) {
	priv := make([]byte, curve25519.ScalarSize)
	if _, err := rand.Read(priv); err != nil {
		return "", "", err
	}
	// RFC 7748 scalar clamp
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return "", "", err
	}
	return base64.RawURLEncoding.EncodeToString(priv), base64.RawURLEncoding.EncodeToString(pub), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

const tokenAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomToken(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(tokenAlphabet))))
		if err != nil {
			return "", err
		}
		b.WriteByte(tokenAlphabet[idx.Int64()])
	}
	return b.String(), nil
}

func randomInt(min, max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max-min+1)))
	if err != nil {
		return 0, err
	}
	return min + int(n.Int64()), nil
}

// probeListen 真实绑定一次 TCP 端口来确认可用性。
func probeListen(port int) bool {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	ln.Close()
	return true
}
