package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// FeedGuard はRSSフィード取得時のSSRF防止機能のインターフェース。
// トピックに設定されたフィードURLは外部入力として扱い、
// 内部ネットワークへのリクエストを防止する。
type FeedGuard interface {
	// SafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
	// safeurlライブラリがnet.DialerのControlフックでDNS解決後の
	// IPアドレスを検証するため、DNS再バインディング攻撃にも対応する。
	SafeClient(timeout time.Duration) *http.Client

	// ValidateFeedURL はフィードURLの安全性を静的に検証する。
	// DNS解決は行わない。解決後のIP検証はSafeClientのDialer側で行われる。
	ValidateFeedURL(rawURL string) error
}

// feedSchemes はフィード取得で許可されるURLスキーム。
var feedSchemes = []string{"http", "https"}

// privateNetworks はフィード取得でブロックされるネットワーク範囲。
// プライベートIP(RFC 1918)、ループバック、リンクローカル
// （クラウドメタデータIP 169.254.169.254を含む）、IPv6の各相当範囲。
var privateNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []net.IPNet {
	networks := make([]net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR: %s: %v", cidr, err))
		}
		networks = append(networks, *network)
	}
	return networks
}

// feedGuard はFeedGuardの実装。
type feedGuard struct{}

// NewFeedGuard はFeedGuardの新しいインスタンスを生成する。
func NewFeedGuard() *feedGuard {
	return &feedGuard{}
}

// SafeClient はSSRF防止機能付きのHTTPクライアントを生成する。
// プライベートIP、ループバック、リンクローカル、メタデータIPへの
// リクエストがDialerレベルでブロックされる。
func (g *feedGuard) SafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(feedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateFeedURL はフィードURLの安全性を静的に検証する。
// スキーム、ホストの有無、IPリテラルのブロック範囲照合を行う。
func (g *feedGuard) ValidateFeedURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("フィードURLが空です")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("フィードURLのパースに失敗しました: %w", err)
	}

	if !isFeedScheme(parsed.Scheme) {
		return fmt.Errorf("許可されていないスキームです: %s", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("フィードURLにホストがありません: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("ブロック対象のホストです: %s", host)
	}

	if ip := net.ParseIP(host); ip != nil && isPrivateIP(ip) {
		return fmt.Errorf("ブロック対象のIPアドレスです: %s", ip.String())
	}

	return nil
}

// isFeedScheme はURLスキームが許可リストに含まれるかを検証する。
func isFeedScheme(scheme string) bool {
	for _, allowed := range feedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isPrivateIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isPrivateIP(ip net.IP) bool {
	for _, network := range privateNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
