package rules

import (
	"regexp"

	"github.com/deadlog/deadlog-go/pkg/deadlog/event"
)

// Timestamp prefix in Deadside logs: "[2025.05.17-02.01.30:829][  0]"
const timestampLayout = "2006.01.02-15.04.05"

// timestampPattern captures the date-time portion of the line prefix.
// Lines without the prefix are still classified; they just carry no timestamp.
var timestampPattern = regexp.MustCompile(`^\[(\d{4}\.\d{2}\.\d{2}-\d{2}\.\d{2}\.\d{2}):\d{3}\]`)

// builtin is the fixed rule set, evaluated in declaration order with
// first-match-wins semantics. The order encodes precedence, not just
// categorization: queue_join must be checked before player_join because a
// join request line also mentions the login name a later, looser rule could
// pick up. Do not reorder.
var builtin = []*Rule{
	{
		// "LogNet: Join request: /Game/Maps/world_0/World_0?logintype=eos&login=Njshh&Name=Njshh&eosid=|0002e69a65204b669c20238266782d7b"
		Name: "queue_join",
		Type: event.QueueJoin,
		re: regexp.MustCompile(
			`LogNet: Join request: [^?\s]+\?.*?Name=(?P<name>[^&\s]+).*?eosid=\|(?P<eosid>[0-9a-f]+)`,
		),
	},
	{
		// "LogBeacon: Beacon Join SFPSOnlineBeaconClient EOS:|0002e69a65204b669c20238266782d7b"
		Name: "player_join",
		Type: event.PlayerJoin,
		re: regexp.MustCompile(
			`LogBeacon: Beacon Join SFPSOnlineBeaconClient EOS:\|(?P<eosid>[0-9a-f]+)`,
		),
	},
	{
		// "LogNet: UChannel::Close: Sending CloseBunch. ChIndex == 0. UniqueId: EOS:|0002e69a65204b669c20238266782d7b"
		// Emitted when a fully connected player drops; both disconnect forms
		// produce the same event type and the state machine decides whether
		// the player had actually joined.
		Name: "disconnect_post_join",
		Type: event.Disconnect,
		re: regexp.MustCompile(
			`LogNet: UChannel::Close: Sending CloseBunch.*UniqueId: EOS:\|(?P<eosid>[0-9a-f]+)`,
		),
	},
	{
		// "LogOnline: Warning: Player EOS:|0002e69a65204b669c20238266782d7b left the queue"
		// Emitted when a queued connection is torn down before registration.
		Name: "disconnect_pre_join",
		Type: event.Disconnect,
		re: regexp.MustCompile(
			`LogOnline: Warning: Player EOS:\|(?P<eosid>[0-9a-f]+) left the queue`,
		),
	},
	{
		// "LogSFPS: Mission GA_Settle_05_ChernyLog_mis1 switched to READY"
		Name: "mission_ready",
		Type: event.MissionReady,
		re: regexp.MustCompile(
			`LogSFPS: Mission (?P<mission>\S+) switched to READY`,
		),
	},
	{
		// "LogSFPS: Mission GA_Settle_05_ChernyLog_mis1 switched to INITIAL"
		Name: "mission_initial",
		Type: event.MissionInitial,
		re: regexp.MustCompile(
			`LogSFPS: Mission (?P<mission>\S+) switched to INITIAL`,
		),
	},
	{
		// "LogSFPS: AirDrop switched to Flying"
		Name: "airdrop_flying",
		Type: event.AirdropFlying,
		re: regexp.MustCompile(
			`LogSFPS: AirDrop switched to Flying`,
		),
	},
	{
		// "LogSFPS: [ASFPSGameMode::NewVehicle_Add] Add vehicle BP_SFPSVehicle_Ural_C_2147482394 Total 1"
		Name: "vehicle_add",
		Type: event.VehicleAdd,
		re: regexp.MustCompile(
			`LogSFPS: \[ASFPSGameMode::NewVehicle_Add\] Add vehicle (?P<vehicle>\S+) Total (?P<total>\d+)`,
		),
	},
	{
		// "LogSFPS: playersmaxcount=50"
		Name: "max_player_count",
		Type: event.MaxPlayerCount,
		re: regexp.MustCompile(
			`LogSFPS: playersmaxcount=(?P<count>\d+)`,
		),
	},
}

// exclusionMarkers are substrings of lines that look like events but must be
// ignored.
var exclusionMarkers = []string{
	"SFPSOnlineBeaconHost",              // host-side beacon, not a player
	"Join request: /Game/Maps/world_menu", // menu world, not a real queue entry
}
