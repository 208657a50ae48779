package link

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/lunixbochs/struc"
)

// Open - first host frame, negotiates projection parameters (28 bytes)
type Open struct {
	Width     uint32 `struc:"uint32,little"`
	Height    uint32 `struc:"uint32,little"`
	FPS       uint32 `struc:"uint32,little"`
	Format    uint32 `struc:"uint32,little"`
	PacketMax uint32 `struc:"uint32,little"`
	Version   uint32 `struc:"uint32,little"`
	Mode      uint32 `struc:"uint32,little"`
}

type Heartbeat struct{}

type Unplugged struct{}

type DisconnectPhone struct{}

type CloseDongle struct{}

// Phase - coarse connection progress reported by the adapter
type Phase struct {
	Value uint32 `struc:"uint32,little"`
}

// Plugged - phone attached; the 8 byte form carries the wifi flag
type Plugged struct {
	PhoneType uint32
	WiFi      uint32
	WiFiAvail bool
}

// Command - secondary dispatch, see Cmd* constants
type Command struct {
	Value uint32 `struc:"uint32,little"`
}

type LogoType struct {
	Value uint32 `struc:"uint32,little"`
}

type Touch struct {
	Action uint32 `struc:"uint32,little"`
	X      uint32 `struc:"uint32,little"` // 0..10000, relative to width
	Y      uint32 `struc:"uint32,little"` // 0..10000, relative to height
	Flags  uint32 `struc:"uint32,little"`
}

type TouchItem struct {
	X      float32
	Y      float32
	Action uint32
	ID     uint32
}

type MultiTouch struct {
	Touches []TouchItem
}

// VideoData - 20 byte sub-header, then Annex-B H.264
type VideoData struct {
	Width       uint32
	Height      uint32
	StreamToken uint32
	PTS         uint32
	Flags       uint32
	Data        []byte
}

// AudioData - 12 byte sub-header, then one of:
// PCM samples, a single AudioCommand byte, or a 4 byte duration float
// (volume change request for the main output bus)
type AudioData struct {
	DecodeType     uint32
	Volume         float32
	AudioType      uint32
	Command        AudioCommand
	VolumeDuration float32
	VolumeAvail    bool
	Data           []byte
}

// BoxSettings - JSON config blob (mediaDelay, syncTime, androidAutoSize...)
type BoxSettings struct {
	Settings []byte
}

// SendFile - write a file on the adapter (config keys live in /tmp and /etc)
type SendFile struct {
	Path string
	Data []byte
}

type ManufacturerInfo struct {
	A uint32 `struc:"uint32,little"`
	B uint32 `struc:"uint32,little"`
}

type SoftwareVersion struct {
	Version string
}

type BluetoothAddress struct {
	Address string
}

type BluetoothPIN struct {
	PIN string
}

type BluetoothDeviceName struct {
	Name string
}

type WifiDeviceName struct {
	Name string
}

type BluetoothPairedList struct {
	Data string
}

type HiCarLink struct {
	Link string
}

// MediaData - now playing info, Tag 1 is JSON metadata, Tag 3 is cover art
type MediaData struct {
	Tag  uint32
	Data []byte
}

// Unknown - vendor reserved or undocumented ID, never a decode error
type Unknown struct {
	Type uint32
	Data []byte
}

var messageTypes = map[reflect.Type]uint32{
	reflect.TypeOf(&Open{}):                TypeOpen,
	reflect.TypeOf(&Plugged{}):             TypePlugged,
	reflect.TypeOf(&Phase{}):               TypePhase,
	reflect.TypeOf(&Unplugged{}):           TypeUnplugged,
	reflect.TypeOf(&Touch{}):               TypeTouch,
	reflect.TypeOf(&VideoData{}):           TypeVideoData,
	reflect.TypeOf(&AudioData{}):           TypeAudioData,
	reflect.TypeOf(&Command{}):             TypeCommand,
	reflect.TypeOf(&LogoType{}):            TypeLogoType,
	reflect.TypeOf(&BluetoothAddress{}):    TypeBluetoothAddress,
	reflect.TypeOf(&BluetoothPIN{}):        TypeBluetoothPIN,
	reflect.TypeOf(&BluetoothDeviceName{}): TypeBluetoothDeviceName,
	reflect.TypeOf(&WifiDeviceName{}):      TypeWifiDeviceName,
	reflect.TypeOf(&DisconnectPhone{}):     TypeDisconnectPhone,
	reflect.TypeOf(&BluetoothPairedList{}): TypeBluetoothPairedList,
	reflect.TypeOf(&ManufacturerInfo{}):    TypeManufacturerInfo,
	reflect.TypeOf(&CloseDongle{}):         TypeCloseDongle,
	reflect.TypeOf(&MultiTouch{}):          TypeMultiTouch,
	reflect.TypeOf(&HiCarLink{}):           TypeHiCarLink,
	reflect.TypeOf(&BoxSettings{}):         TypeBoxSettings,
	reflect.TypeOf(&MediaData{}):           TypeMediaData,
	reflect.TypeOf(&SendFile{}):            TypeSendFile,
	reflect.TypeOf(&Heartbeat{}):           TypeHeartbeat,
	reflect.TypeOf(&SoftwareVersion{}):     TypeSoftwareVersion,
}

var typeByID = map[uint32]reflect.Type{}

func init() {
	for t, id := range messageTypes {
		typeByID[id] = t
	}
}

// Marshal - encode message with frame header
func Marshal(msg any) ([]byte, error) {
	var id uint32

	if u, ok := msg.(*Unknown); ok {
		id = u.Type
	} else if id, ok = messageTypes[reflect.TypeOf(msg)]; !ok {
		return nil, fmt.Errorf("link: unsupported message %T", msg)
	}

	payload, err := marshalPayload(msg)
	if err != nil {
		return nil, err
	}

	b := make([]byte, HeaderSize+len(payload))
	EncodeHeader(b, id, uint32(len(payload)))
	copy(b[HeaderSize:], payload)
	return b, nil
}

// Decode - decode payload of a checked header into a typed message
func Decode(msgType uint32, payload []byte) (any, error) {
	t, ok := typeByID[msgType]
	if !ok {
		return &Unknown{Type: msgType, Data: payload}, nil
	}

	msg := reflect.New(t.Elem()).Interface()
	if err := unmarshalPayload(msg, payload); err != nil {
		return nil, err
	}
	return msg, nil
}

func marshalPayload(msg any) ([]byte, error) {
	switch msg := msg.(type) {
	case *AudioData:
		b := make([]byte, 12)
		binary.LittleEndian.PutUint32(b, msg.DecodeType)
		binary.LittleEndian.PutUint32(b[4:], math.Float32bits(msg.Volume))
		binary.LittleEndian.PutUint32(b[8:], msg.AudioType)
		if msg.Command != 0 {
			return append(b, byte(msg.Command)), nil
		}
		if msg.VolumeAvail {
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(msg.VolumeDuration))
			return b, nil
		}
		return append(b, msg.Data...), nil

	case *VideoData:
		b := make([]byte, 20, 20+len(msg.Data))
		binary.LittleEndian.PutUint32(b, msg.Width)
		binary.LittleEndian.PutUint32(b[4:], msg.Height)
		binary.LittleEndian.PutUint32(b[8:], msg.StreamToken)
		binary.LittleEndian.PutUint32(b[12:], msg.PTS)
		binary.LittleEndian.PutUint32(b[16:], msg.Flags)
		return append(b, msg.Data...), nil

	case *MultiTouch:
		b := make([]byte, 0, len(msg.Touches)*16)
		for _, item := range msg.Touches {
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(item.X))
			b = binary.LittleEndian.AppendUint32(b, math.Float32bits(item.Y))
			b = binary.LittleEndian.AppendUint32(b, item.Action)
			b = binary.LittleEndian.AppendUint32(b, item.ID)
		}
		return b, nil

	case *Plugged:
		b := binary.LittleEndian.AppendUint32(nil, msg.PhoneType)
		if msg.WiFiAvail {
			b = binary.LittleEndian.AppendUint32(b, msg.WiFi)
		}
		return b, nil

	case *BoxSettings:
		return msg.Settings, nil

	case *SendFile:
		b := binary.LittleEndian.AppendUint32(nil, uint32(len(msg.Path)+1))
		b = append(b, msg.Path...)
		b = append(b, 0)
		b = binary.LittleEndian.AppendUint32(b, uint32(len(msg.Data)))
		return append(b, msg.Data...), nil

	case *MediaData:
		b := binary.LittleEndian.AppendUint32(nil, msg.Tag)
		return append(b, msg.Data...), nil

	case *SoftwareVersion:
		return nullString(msg.Version), nil
	case *BluetoothAddress:
		return nullString(msg.Address), nil
	case *BluetoothPIN:
		return nullString(msg.PIN), nil
	case *BluetoothDeviceName:
		return nullString(msg.Name), nil
	case *WifiDeviceName:
		return nullString(msg.Name), nil
	case *BluetoothPairedList:
		return nullString(msg.Data), nil
	case *HiCarLink:
		return nullString(msg.Link), nil

	case *Unknown:
		return msg.Data, nil
	}

	if reflect.ValueOf(msg).Elem().NumField() == 0 {
		return nil, nil
	}

	buf := bytes.NewBuffer(nil)
	if err := struc.Pack(buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalPayload(msg any, payload []byte) error {
	switch msg := msg.(type) {
	case *AudioData:
		if len(payload) < 12 {
			return fmt.Errorf("%w: AudioData %d bytes", ErrShortPayload, len(payload))
		}
		msg.DecodeType = binary.LittleEndian.Uint32(payload)
		msg.Volume = math.Float32frombits(binary.LittleEndian.Uint32(payload[4:]))
		msg.AudioType = binary.LittleEndian.Uint32(payload[8:])
		switch len(payload) - 12 {
		case 0:
		case 1:
			msg.Command = AudioCommand(payload[12])
		case 4:
			msg.VolumeDuration = math.Float32frombits(binary.LittleEndian.Uint32(payload[12:]))
			msg.VolumeAvail = true
		default:
			msg.Data = payload[12:]
		}
		return nil

	case *VideoData:
		if len(payload) < 20 {
			return fmt.Errorf("%w: VideoData %d bytes", ErrShortPayload, len(payload))
		}
		msg.Width = binary.LittleEndian.Uint32(payload)
		msg.Height = binary.LittleEndian.Uint32(payload[4:])
		msg.StreamToken = binary.LittleEndian.Uint32(payload[8:])
		msg.PTS = binary.LittleEndian.Uint32(payload[12:])
		msg.Flags = binary.LittleEndian.Uint32(payload[16:])
		msg.Data = payload[20:]
		return nil

	case *MultiTouch:
		msg.Touches = make([]TouchItem, len(payload)/16)
		for i := range msg.Touches {
			b := payload[i*16:]
			msg.Touches[i] = TouchItem{
				X:      math.Float32frombits(binary.LittleEndian.Uint32(b)),
				Y:      math.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
				Action: binary.LittleEndian.Uint32(b[8:]),
				ID:     binary.LittleEndian.Uint32(b[12:]),
			}
		}
		return nil

	case *Plugged:
		if len(payload) < 4 {
			return fmt.Errorf("%w: Plugged %d bytes", ErrShortPayload, len(payload))
		}
		msg.PhoneType = binary.LittleEndian.Uint32(payload)
		if len(payload) >= 8 {
			msg.WiFi = binary.LittleEndian.Uint32(payload[4:])
			msg.WiFiAvail = true
		}
		return nil

	case *BoxSettings:
		msg.Settings = payload
		return nil

	case *SendFile:
		if len(payload) < 8 {
			return fmt.Errorf("%w: SendFile %d bytes", ErrShortPayload, len(payload))
		}
		n := int(binary.LittleEndian.Uint32(payload))
		if len(payload) < 8+n {
			return fmt.Errorf("%w: SendFile path", ErrShortPayload)
		}
		msg.Path = nullTerm(payload[4 : 4+n])
		msg.Data = payload[8+n:]
		return nil

	case *MediaData:
		if len(payload) < 4 {
			return fmt.Errorf("%w: MediaData %d bytes", ErrShortPayload, len(payload))
		}
		msg.Tag = binary.LittleEndian.Uint32(payload)
		msg.Data = payload[4:]
		return nil

	case *SoftwareVersion:
		msg.Version = nullTerm(payload)
		return nil
	case *BluetoothAddress:
		msg.Address = nullTerm(payload)
		return nil
	case *BluetoothPIN:
		msg.PIN = nullTerm(payload)
		return nil
	case *BluetoothDeviceName:
		msg.Name = nullTerm(payload)
		return nil
	case *WifiDeviceName:
		msg.Name = nullTerm(payload)
		return nil
	case *BluetoothPairedList:
		msg.Data = nullTerm(payload)
		return nil
	case *HiCarLink:
		msg.Link = nullTerm(payload)
		return nil

	case *Unknown:
		msg.Data = payload
		return nil
	}

	if reflect.ValueOf(msg).Elem().NumField() == 0 {
		return nil
	}

	if err := struc.Unpack(bytes.NewReader(payload), msg); err != nil {
		return fmt.Errorf("%w: %T %d bytes", ErrShortPayload, msg, len(payload))
	}
	return nil
}

func nullTerm(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

func nullString(s string) []byte {
	return append([]byte(s), 0)
}
