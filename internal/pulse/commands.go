package pulse

import (
	"context"
	"fmt"

	"github.com/jfreymuth/pulse/proto"
)

// ServerInfo is the reply to GET_SERVER_INFO.
type ServerInfo struct {
	PackageName       string
	PackageVersion    string
	User              string
	Host              string
	SampleSpec        SampleSpec
	DefaultSinkName   string
	DefaultSourceName string
	Cookie            uint32
	ChannelMap        ChannelMap
}

// SetDefaultSink submits a request to make name the default sink. The server's
// answer is collected by Drain.
func (c *Client) SetDefaultSink(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty sink name", ErrInvalid)
	}
	_, err := c.Submit(proto.OpSetDefaultSink, func(e *Encoder) {
		e.PutString(name)
	})
	return err
}

func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	d, err := c.Request(ctx, proto.OpGetServerInfo, nil)
	if err != nil {
		return nil, err
	}

	var info ServerInfo
	for _, s := range []*string{&info.PackageName, &info.PackageVersion, &info.User, &info.Host} {
		if *s, err = d.GetString(); err != nil {
			return nil, err
		}
	}
	if info.SampleSpec, err = d.GetSampleSpec(); err != nil {
		return nil, err
	}
	if info.DefaultSinkName, err = d.GetString(); err != nil {
		return nil, err
	}
	if info.DefaultSourceName, err = d.GetString(); err != nil {
		return nil, err
	}
	if info.Cookie, err = d.GetU32(); err != nil {
		return nil, err
	}
	if c.Version() >= 15 {
		if info.ChannelMap, err = d.GetChannelMap(); err != nil {
			return nil, err
		}
	}
	return &info, nil
}
