package snmp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"
)

// Client wraps gosnmp for GET operations against a single target.
type Client struct{}

// NewClient builds an SNMP client. Connection parameters are supplied
// per-call since the scheduler fans out across many distinct targets.
func NewClient() *Client { return &Client{} }

// Get performs a synchronous SNMP GET for oids against target, bounded by
// ctx. target is a "host:port" pair; community selects SNMPv2c auth.
func (c *Client) Get(ctx context.Context, target, community string, oids []string) (map[string]string, error) {
	host, port, err := splitHostPort(target)
	if err != nil {
		return nil, err
	}

	g := &gosnmp.GoSNMP{
		Target:    host,
		Port:      port,
		Community: community,
		Version:   gosnmp.Version2c,
		Timeout:   time.Second * 2,
		Retries:   1,
	}

	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			g.Timeout = d
		}
	}

	if err := g.Connect(); err != nil {
		return nil, fmt.Errorf("snmp connect %s: %w", target, err)
	}
	defer g.Conn.Close()

	result, err := g.Get(oids)
	if err != nil {
		return nil, fmt.Errorf("snmp get %s: %w", target, err)
	}

	out := make(map[string]string, len(result.Variables))
	for _, v := range result.Variables {
		out[v.Name] = formatVariable(v)
	}
	return out, nil
}

func splitHostPort(target string) (string, uint16, error) {
	parts := strings.SplitN(target, ":", 2)
	if len(parts) == 1 {
		return parts[0], 161, nil
	}
	var port uint16
	if _, err := fmt.Sscanf(parts[1], "%d", &port); err != nil {
		return "", 0, fmt.Errorf("invalid snmp target %q: %w", target, err)
	}
	return parts[0], port, nil
}

func formatVariable(v gosnmp.SnmpPDU) string {
	switch v.Type {
	case gosnmp.OctetString:
		if b, ok := v.Value.([]byte); ok {
			return string(b)
		}
		return fmt.Sprintf("%v", v.Value)
	default:
		return fmt.Sprintf("%v", v.Value)
	}
}
