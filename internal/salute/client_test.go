package salute

import (
	"errors"
	"fmt"
	"testing"

	"github.com/semjef/ha-salute-bridge/internal/util"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/eclipse/paho.mqtt.golang/packets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testMessage struct {
	topic   string
	payload []byte
}

func (m testMessage) Duplicate() bool   { return false }
func (m testMessage) Qos() byte         { return 0 }
func (m testMessage) Retained() bool    { return false }
func (m testMessage) Topic() string     { return m.topic }
func (m testMessage) MessageID() uint16 { return 0 }
func (m testMessage) Payload() []byte   { return m.payload }
func (m testMessage) Ack()              {}

func testClient() *SaluteClient {
	cfg := util.LoadTestConfig()
	return CreateSaluteClient(&cfg, OptsFromConfig(&cfg), nil, nil)
}

func TestTopics(t *testing.T) {
	c := testClient()
	assert.Equal(t, "sberdevices/v1/test_login/down/#", c.DownTopic())
	assert.Equal(t, "sberdevices/v1/test_login/up/status", c.StatusTopic())
	assert.Equal(t, "sberdevices/v1/test_login/up/config", c.ConfigTopic())
	assert.Equal(t, "sberdevices/v1/__config", c.GlobalConfigTopic())
}

func TestParseDownlinkKinds(t *testing.T) {
	require := require.New(t)
	c := testClient()

	for _, kind := range []string{DOWNLINK_COMMANDS, DOWNLINK_STATUS_REQUEST, DOWNLINK_CONFIG_REQUEST, DOWNLINK_ERRORS} {
		parsed, err := c.ParseDownlink(testMessage{
			topic:   "sberdevices/v1/test_login/down/" + kind,
			payload: []byte(`{}`),
		})
		require.NoError(err)
		assert.Equal(t, kind, parsed.Kind)
		assert.Equal(t, []byte(`{}`), parsed.Payload)
	}
}

func TestParseDownlinkGlobalConfig(t *testing.T) {
	require := require.New(t)
	c := testClient()

	parsed, err := c.ParseDownlink(testMessage{
		topic:   "sberdevices/v1/__config",
		payload: []byte(`{"http_api_endpoint":"https://example.org"}`),
	})
	require.NoError(err)
	assert.Equal(t, DOWNLINK_GLOBAL_CONFIG, parsed.Kind)
}

func TestParseDownlinkRejectsForeignTopics(t *testing.T) {
	c := testClient()

	_, err := c.ParseDownlink(testMessage{topic: "sberdevices/v1/other_login/down/commands"})
	assert.Error(t, err)

	_, err = c.ParseDownlink(testMessage{topic: "sberdevices/v1/test_login/down/surprise"})
	assert.Error(t, err)

	_, err = c.ParseDownlink(testMessage{topic: "sberdevices/v1/test_login/up/status"})
	assert.Error(t, err)
}

func TestIsAuthErrorClassifiesCredentialRejections(t *testing.T) {
	assert.True(t, IsAuthError(packets.ErrorRefusedBadUsernameOrPassword))
	assert.True(t, IsAuthError(packets.ErrorRefusedNotAuthorised))
	assert.True(t, IsAuthError(fmt.Errorf("connect: %w", packets.ErrorRefusedNotAuthorised)),
		"wrapped rejections must still classify")

	assert.False(t, IsAuthError(nil))
	assert.False(t, IsAuthError(errors.New("MQTT connect timed out")))
	assert.False(t, IsAuthError(packets.ErrorRefusedServerUnavailable),
		"a transient broker failure is retryable, not terminal")
}

var _ mqtt.Message = testMessage{}
