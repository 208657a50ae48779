package yaml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPatch(t *testing.T) {
	b := []byte(`# my adapters`)

	b, err := Patch(b, "car", "tcp://192.168.50.2:7240", "adapters")
	require.Nil(t, err)

	require.Equal(t, `# my adapters
adapters:
  car: tcp://192.168.50.2:7240
`, string(b))

	b, err = Patch(b, "garage", map[string]any{"address": "tcp://10.0.0.7"}, "adapters")
	require.Nil(t, err)

	require.Equal(t, `# my adapters
adapters:
  car: tcp://192.168.50.2:7240
  garage:
    address: tcp://10.0.0.7
`, string(b))

	b, err = Patch(b, "car", "tcp://192.168.50.3:7240", "adapters")
	require.Nil(t, err)

	require.Equal(t, `# my adapters
adapters:
  car: tcp://192.168.50.3:7240
  garage:
    address: tcp://10.0.0.7
`, string(b))

	b, err = Patch(b, "garage", nil, "adapters")
	require.Nil(t, err)

	require.Equal(t, `# my adapters
adapters:
  car: tcp://192.168.50.3:7240
`, string(b))
}

func TestPatchNested(t *testing.T) {
	b := []byte(`adapters:
  car:
    address: tcp://192.168.50.2:7240
api:
  listen: :7278
`)

	b, err := Patch(b, "night_mode", true, "adapters", "car")
	require.Nil(t, err)

	require.Equal(t, `adapters:
  car:
    address: tcp://192.168.50.2:7240
    night_mode: true
api:
  listen: :7278
`, string(b))
}
