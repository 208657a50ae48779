package link

// message type IDs (the Type field of the frame header)
const (
	TypeOpen                uint32 = 0x01
	TypePlugged             uint32 = 0x02
	TypePhase               uint32 = 0x03
	TypeUnplugged           uint32 = 0x04
	TypeTouch               uint32 = 0x05
	TypeVideoData           uint32 = 0x06
	TypeAudioData           uint32 = 0x07
	TypeCommand             uint32 = 0x08
	TypeLogoType            uint32 = 0x09
	TypeBluetoothAddress    uint32 = 0x0A
	TypeBluetoothPIN        uint32 = 0x0C
	TypeBluetoothDeviceName uint32 = 0x0D
	TypeWifiDeviceName      uint32 = 0x0E
	TypeDisconnectPhone     uint32 = 0x0F
	TypeBluetoothPairedList uint32 = 0x12
	TypeManufacturerInfo    uint32 = 0x14
	TypeCloseDongle         uint32 = 0x15
	TypeMultiTouch          uint32 = 0x17
	TypeHiCarLink           uint32 = 0x18
	TypeBoxSettings         uint32 = 0x19
	TypeMediaData           uint32 = 0x2A
	TypeSendFile            uint32 = 0x99
	TypeHeartbeat           uint32 = 0xAA
	TypeSoftwareVersion     uint32 = 0xCC
)

// Command message values. Small values are host requests and phone UI
// keys, values above 1000 are adapter state reports.
const (
	CmdStartRecordAudio       uint32 = 1
	CmdStopRecordAudio        uint32 = 2
	CmdRequestHostUI          uint32 = 3
	CmdSiri                   uint32 = 5
	CmdMic                    uint32 = 7
	CmdFrame                  uint32 = 12 // ask the adapter for a fresh keyframe
	CmdBoxMic                 uint32 = 15
	CmdEnableNightMode        uint32 = 16
	CmdDisableNightMode       uint32 = 17
	CmdAudioTransferOn        uint32 = 22
	CmdAudioTransferOff       uint32 = 23
	CmdWifi24G                uint32 = 24
	CmdWifi5G                 uint32 = 25
	CmdLeft                   uint32 = 100
	CmdRight                  uint32 = 101
	CmdSelectDown             uint32 = 104
	CmdSelectUp               uint32 = 105
	CmdBack                   uint32 = 106
	CmdDown                   uint32 = 114
	CmdHome                   uint32 = 200
	CmdPlay                   uint32 = 201
	CmdPause                  uint32 = 202
	CmdNext                   uint32 = 204
	CmdPrev                   uint32 = 205
	CmdRequestVideoFocus      uint32 = 500
	CmdReleaseVideoFocus      uint32 = 501
	CmdWifiEnable             uint32 = 1000
	CmdAutoConnectEnable      uint32 = 1001
	CmdWifiConnect            uint32 = 1002
	CmdScanningDevice         uint32 = 1003
	CmdDeviceFound            uint32 = 1004
	CmdDeviceNotFound         uint32 = 1005
	CmdConnectDeviceFailed    uint32 = 1006
	CmdBtConnected            uint32 = 1007
	CmdBtDisconnected         uint32 = 1008
	CmdWifiConnected          uint32 = 1009
	CmdProjectionDisconnected uint32 = 1010 // 0x3F2, phone dropped the projection link
	CmdBtPairStart            uint32 = 1011
	CmdWifiPair               uint32 = 1012
)

// Phase message values, connection progress reported by the adapter
const (
	PhaseStandby    uint32 = 0
	PhaseSearching  uint32 = 1
	PhaseConnecting uint32 = 2
	PhaseStreaming  uint32 = 3
)

// AudioData.AudioType - logical audio bus of a packet
const (
	AudioTypeMain uint32 = 1
	AudioTypeNavi uint32 = 2
	AudioTypeMic  uint32 = 3
)

// AudioCommand - single byte control code in place of PCM samples
type AudioCommand byte

const (
	AudioOutputStart      AudioCommand = 0x01
	AudioOutputStop       AudioCommand = 0x02
	AudioInputConfig      AudioCommand = 0x03
	AudioPhonecallStart   AudioCommand = 0x04
	AudioPhonecallStop    AudioCommand = 0x05
	AudioNaviStart        AudioCommand = 0x06
	AudioNaviStop         AudioCommand = 0x07
	AudioSiriStart        AudioCommand = 0x08
	AudioSiriStop         AudioCommand = 0x09
	AudioMediaStart       AudioCommand = 0x0A
	AudioMediaStop        AudioCommand = 0x0B
	AudioAlertStart       AudioCommand = 0x0C
	AudioAlertStop        AudioCommand = 0x0D
	AudioIncomingCallInit AudioCommand = 0x0E
	AudioNaviComplete     AudioCommand = 0x10
)

// Touch.Action values
const (
	TouchDown uint32 = 14
	TouchMove uint32 = 15
	TouchUp   uint32 = 16
)
