// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/xcrouter/host"
	"github.com/ava-labs/xcrouter/pfm"
	"github.com/ava-labs/xcrouter/xc"
)

const (
	remoteNetwork xc.NetworkID = 2
	hopNetwork    xc.NetworkID = 3

	remoteGateway = "gateway2"
	hopGateway    = "gateway3"
	interpreter1  = "interpreter1"
)

// newBridgeRouter returns a router on network 1 that knows network 2 over a
// direct link and network 3 through one intermediate chain. interpreter1
// runs the programs of alice.
func newBridgeRouter(t *testing.T) (*Router, host.Env) {
	require := require.New(t)
	ctx := context.Background()
	r, err := New(memdb.New(), prometheus.NewRegistry())
	require.NoError(err)

	env := host.Env{Self: "gateway"}
	asAdmin := host.MessageInfo{Sender: admin}
	_, err = r.Instantiate(ctx, env, asAdmin, mustJSON(t, InstantiateMsg{
		NetworkID:         localNetwork,
		Admin:             admin,
		InterpreterCodeID: interpreterCode,
	}))
	require.NoError(err)

	msgs := []ExecuteMsg{
		{RegisterAsset: &RegisterAssetMsg{ID: 5, NetworkID: localNetwork, Local: NativeReference("upica")}},
		{RegisterAsset: &RegisterAssetMsg{ID: 6, NetworkID: localNetwork, Local: VirtualReference("token")}},
		{ForceNetwork: &NetworkItem{ID: remoteNetwork, GatewayAddress: remoteGateway, Ics20: Ics20Config{WasmHooks: true}}},
		{ForceNetwork: &NetworkItem{ID: hopNetwork, GatewayAddress: hopGateway, Ics20: Ics20Config{PFM: true}}},
		{ForceNetworkLink: &ForceNetworkLinkMsg{From: localNetwork, To: remoteNetwork, Link: NetworkLink{
			XcvmChannel:  "channel-1",
			Ics20Channel: "channel-0",
		}}},
		{ForceNetworkLink: &ForceNetworkLinkMsg{From: localNetwork, To: hopNetwork, Link: NetworkLink{
			XcvmChannel:    "channel-3",
			Ics20Channel:   "channel-2",
			TimeoutSeconds: 60,
			Hops: []pfm.Hop{
				{Receiver: "osmo1relay", Route: pfm.IBCRoute("transfer", "channel-7", "10m", 2)},
				{Route: pfm.IBCRoute("transfer", "channel-9", "10m", 1)},
			},
		}}},
	}
	for _, msg := range msgs {
		_, err := r.Execute(ctx, env, asAdmin, mustJSON(t, msg))
		require.NoError(err)
	}
	require.NoError(r.State().PutInterpreter(aliceOrigin(0), &Interpreter{Address: interpreter1}))
	return r, env
}

func bridgeMsg(to xc.NetworkID, assets xc.Funds) ExecuteMsg {
	return ExecuteMsg{BridgeForward: &BridgeForwardMsg{
		InterpreterOrigin: aliceOrigin(0),
		To:                to,
		Salt:              []byte("bridged"),
		Program:           xc.Program{Tag: []byte("remote")},
		Assets:            assets,
	}}
}

func upica(amount uint64) xc.Funds {
	return xc.Funds{{AssetID: 5, Amount: xc.NewAmount(amount)}}
}

func TestBridgeForwardOnlyFromInterpreter(t *testing.T) {
	require := require.New(t)
	r, env := newBridgeRouter(t)

	for _, sender := range []string{"alice", admin, env.Self, "interpreter2"} {
		_, err := r.Execute(context.Background(), env, host.MessageInfo{Sender: sender}, mustJSON(t, bridgeMsg(remoteNetwork, nil)))
		require.ErrorIs(err, ErrUnauthorized)
	}

	// the interpreter of another origin is not trusted either
	msg := bridgeMsg(remoteNetwork, nil)
	msg.BridgeForward.InterpreterOrigin = aliceOrigin(1)
	_, err := r.Execute(context.Background(), env, host.MessageInfo{Sender: interpreter1}, mustJSON(t, msg))
	require.ErrorIs(err, ErrUnauthorized)
}

func TestBridgeForwardProgramOnly(t *testing.T) {
	require := require.New(t)
	r, env := newBridgeRouter(t)

	resp, err := r.Execute(context.Background(), env, host.MessageInfo{Sender: interpreter1}, mustJSON(t, bridgeMsg(remoteNetwork, nil)))
	require.NoError(err)
	require.Len(resp.Actions, 1)

	send, ok := resp.Actions[0].Msg.(host.IbcSendPacket)
	require.True(ok)
	require.Equal("channel-1", send.ChannelID)
	require.Equal(defaultLinkTimeout, send.Timeout)

	var packet XcvmPacket
	require.NoError(json.Unmarshal(send.Data, &packet))
	require.Equal(aliceOrigin(0).UserOrigin, packet.UserOrigin)
	require.Equal([]byte("bridged"), packet.Salt)
	require.Equal([]byte("remote"), packet.Program.Tag)
	require.Empty(packet.Assets)
}

func TestBridgeForwardDirect(t *testing.T) {
	require := require.New(t)
	r, env := newBridgeRouter(t)

	info := host.MessageInfo{Sender: interpreter1, Funds: host.Coins{host.NewCoin("upica", 100)}}
	resp, err := r.Execute(context.Background(), env, info, mustJSON(t, bridgeMsg(remoteNetwork, upica(100))))
	require.NoError(err)
	require.Len(resp.Actions, 1)

	transfer, ok := resp.Actions[0].Msg.(host.IbcTransfer)
	require.True(ok)
	require.Equal("channel-0", transfer.ChannelID)
	require.Equal(remoteGateway, transfer.ToAddress)
	require.Equal(host.NewCoin("upica", 100), transfer.Amount)

	memo, err := pfm.ParseMemo(transfer.Memo)
	require.NoError(err)
	require.Nil(memo.Forward)
	require.NotNil(memo.Wasm)
	require.Equal(remoteGateway, memo.Wasm.Contract)

	var hook ExecuteMsg
	require.NoError(json.Unmarshal(memo.Wasm.Msg, &hook))
	require.NotNil(hook.Ics20MessageHook)
	require.Equal(localNetwork, hook.Ics20MessageHook.FromNetworkID)
	require.Equal(aliceOrigin(0).UserOrigin, hook.Ics20MessageHook.Packet.UserOrigin)
	require.Equal(upica(100), hook.Ics20MessageHook.Packet.Assets)
}

func TestBridgeForwardMultiHop(t *testing.T) {
	require := require.New(t)
	r, env := newBridgeRouter(t)

	info := host.MessageInfo{Sender: interpreter1, Funds: host.Coins{host.NewCoin("upica", 40)}}
	resp, err := r.Execute(context.Background(), env, info, mustJSON(t, bridgeMsg(hopNetwork, upica(40))))
	require.NoError(err)
	require.Len(resp.Actions, 2)

	transfer, ok := resp.Actions[0].Msg.(host.IbcTransfer)
	require.True(ok)
	require.Equal("channel-2", transfer.ChannelID)
	require.Equal(defaultForwardReceiver, transfer.ToAddress)
	require.Equal(time.Minute, transfer.Timeout)

	memo, err := pfm.ParseMemo(transfer.Memo)
	require.NoError(err)
	require.Nil(memo.Wasm)
	require.Equal(2, memo.Forward.Depth())
	require.Equal("osmo1relay", memo.Forward.Receiver)
	require.Equal("channel-7", *memo.Forward.Channel)
	require.Equal(hopGateway, memo.Forward.Last().Receiver)
	require.Equal("channel-9", *memo.Forward.Last().Channel)

	send, ok := resp.Actions[1].Msg.(host.IbcSendPacket)
	require.True(ok)
	require.Equal("channel-3", send.ChannelID)
	var packet XcvmPacket
	require.NoError(json.Unmarshal(send.Data, &packet))
	require.Equal(upica(40), packet.Assets)
}

func TestBridgeForwardRejects(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, r *Router, env host.Env)
		to     xc.NetworkID
		assets xc.Funds
		funds  host.Coins
		expect error
	}{
		{
			name:   "unknown network",
			to:     9,
			expect: ErrNotFound,
		},
		{
			name: "no xcvm channel",
			setup: func(t *testing.T, r *Router, env host.Env) {
				require.NoError(t, r.State().PutLink(localNetwork, remoteNetwork, &NetworkLink{Ics20Channel: "channel-0"}))
			},
			to:     remoteNetwork,
			expect: ErrNotFound,
		},
		{
			name:   "two assets",
			to:     remoteNetwork,
			assets: xc.Funds{{AssetID: 5, Amount: xc.NewAmount(1)}, {AssetID: 6, Amount: xc.NewAmount(1)}},
			funds:  host.Coins{host.NewCoin("upica", 1)},
			expect: ErrInvalidMessage,
		},
		{
			name:   "virtual asset",
			to:     remoteNetwork,
			assets: xc.Funds{{AssetID: 6, Amount: xc.NewAmount(1)}},
			expect: ErrUnsupportedAsset,
		},
		{
			name:   "unregistered asset",
			to:     remoteNetwork,
			assets: xc.Funds{{AssetID: 7, Amount: xc.NewAmount(1)}},
			expect: ErrUnsupportedAsset,
		},
		{
			name:   "funds not attached",
			to:     remoteNetwork,
			assets: upica(100),
			funds:  host.Coins{host.NewCoin("upica", 99)},
			expect: ErrInsufficientFunds,
		},
		{
			name: "no wasm hooks on a direct link",
			setup: func(t *testing.T, r *Router, env host.Env) {
				require.NoError(t, r.State().PutNetwork(&NetworkItem{ID: remoteNetwork, GatewayAddress: remoteGateway}))
			},
			to:     remoteNetwork,
			assets: upica(1),
			funds:  host.Coins{host.NewCoin("upica", 1)},
			expect: ErrNotFound,
		},
		{
			name: "no ics20 channel",
			setup: func(t *testing.T, r *Router, env host.Env) {
				require.NoError(t, r.State().PutLink(localNetwork, remoteNetwork, &NetworkLink{XcvmChannel: "channel-1"}))
			},
			to:     remoteNetwork,
			assets: upica(1),
			funds:  host.Coins{host.NewCoin("upica", 1)},
			expect: ErrNotFound,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r, env := newBridgeRouter(t)
			if test.setup != nil {
				test.setup(t, r, env)
			}
			info := host.MessageInfo{Sender: interpreter1, Funds: test.funds}
			_, err := r.Execute(context.Background(), env, info, mustJSON(t, bridgeMsg(test.to, test.assets)))
			require.ErrorIs(t, err, test.expect)
		})
	}
}

func TestForceNetworkLinkValidatesHops(t *testing.T) {
	require := require.New(t)
	r, env := newBridgeRouter(t)

	bad := []pfm.Hop{{Receiver: "osmo1relay", Route: pfm.IBCRoute("transfer", "chan-7", "10m", 0)}}
	msg := ExecuteMsg{ForceNetworkLink: &ForceNetworkLinkMsg{From: localNetwork, To: 4, Link: NetworkLink{Hops: bad}}}
	_, err := r.Execute(context.Background(), env, host.MessageInfo{Sender: admin}, mustJSON(t, msg))
	require.ErrorIs(err, ErrInvalidMessage)

	long := make([]pfm.Hop, MaxForwardHops+1)
	for i := range long {
		long[i] = pfm.Hop{Receiver: "relay", Route: pfm.ParachainRoute(uint32(i))}
	}
	msg.ForceNetworkLink.Link.Hops = long
	_, err = r.Execute(context.Background(), env, host.MessageInfo{Sender: admin}, mustJSON(t, msg))
	require.ErrorIs(err, ErrInvalidMessage)

	_, err = r.State().GetLink(localNetwork, 4)
	require.Error(err)
}

// relayInterpreter is a sandbox that also calls its gateway on request, the
// way a running program would.
type relayInterpreter struct {
	*host.Sandbox
}

type relayCall struct {
	Msg   json.RawMessage `json:"msg"`
	Funds host.Coins      `json:"funds,omitempty"`
}

type relayMsg struct {
	Relay *relayCall `json:"relay,omitempty"`
}

func newRelayInterpreter(db database.Database) (host.Contract, error) {
	sandbox, err := host.NewSandbox(db)
	if err != nil {
		return nil, err
	}
	return &relayInterpreter{Sandbox: sandbox.(*host.Sandbox)}, nil
}

func (r *relayInterpreter) Execute(ctx context.Context, env host.Env, info host.MessageInfo, raw []byte) (*host.Response, error) {
	var msg relayMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Relay == nil {
		return r.Sandbox.Execute(ctx, env, info, raw)
	}
	state, err := r.State()
	if err != nil {
		return nil, err
	}
	return host.NewResponse().AddMsg(host.WasmExecute{
		Contract: state.Gateway,
		Msg:      msg.Relay.Msg,
		Funds:    msg.Relay.Funds,
	}), nil
}

func relay(t *testing.T, msg ExecuteMsg, funds host.Coins) []byte {
	return mustJSON(t, relayMsg{Relay: &relayCall{Msg: mustJSON(t, msg), Funds: funds}})
}

func TestBridgeThroughHost(t *testing.T) {
	require := require.New(t)
	env := newTestEnvWith(t, newRelayInterpreter)
	ctx := context.Background()

	for _, msg := range []ExecuteMsg{
		{RegisterAsset: &RegisterAssetMsg{ID: 5, NetworkID: localNetwork, Local: NativeReference("upica")}},
		{ForceNetwork: &NetworkItem{ID: remoteNetwork, GatewayAddress: remoteGateway, Ics20: Ics20Config{WasmHooks: true}}},
		{ForceNetworkLink: &ForceNetworkLinkMsg{From: localNetwork, To: remoteNetwork, Link: NetworkLink{Ics20Channel: "channel-0"}}},
		{SetNetworkChannel: &SetNetworkChannelMsg{To: remoteNetwork, Channel: "channel-5"}},
	} {
		_, err := env.execute(t, admin, msg, nil)
		require.NoError(err)
	}

	// provision alice's interpreter
	_, err := env.execute(t, "alice", ExecuteMsg{ExecuteProgram: &ExecuteProgramMsg{Salt: []byte{0}}}, nil)
	require.NoError(err)
	interpreter, err := env.interpreterOf(t, aliceOrigin(0))
	require.NoError(err)
	require.NoError(env.host.Mint(interpreter, host.NewCoin("upica", 100)))

	contract, ok := env.host.Contract(env.router)
	require.True(ok)
	network, err := contract.(*Router).NetworkOfChannel("channel-5")
	require.NoError(err)
	require.Equal(remoteNetwork, network)

	// the interpreter cannot be impersonated at the top level
	_, err = env.execute(t, interpreter, bridgeMsg(remoteNetwork, nil), nil)
	require.ErrorIs(err, host.ErrReservedSender)
	require.Zero(env.host.Outbox().Len())

	// without assets only the program travels
	receipt, err := env.host.Execute(ctx, "alice", interpreter, relay(t, bridgeMsg(remoteNetwork, nil), nil), nil)
	require.NoError(err)
	require.Equal([]string{actionBridgeForwardProgram}, gatewayActions(receipt))

	packets := env.host.Outbox().Drain()
	require.Len(packets, 1)
	require.Equal(host.PacketRaw, packets[0].Kind)
	require.Equal("channel-5", packets[0].ChannelID)
	require.Equal(env.router, packets[0].Sender)

	// with assets the program rides on the transfer
	funds := host.Coins{host.NewCoin("upica", 100)}
	_, err = env.host.Execute(ctx, "alice", interpreter, relay(t, bridgeMsg(remoteNetwork, upica(100)), funds), nil)
	require.NoError(err)
	require.Zero(env.balance(t, interpreter, "upica"))
	require.Zero(env.balance(t, env.router, "upica"))
	require.Equal(uint64(100), env.balance(t, host.EscrowAddress("channel-0"), "upica"))

	packets = env.host.Outbox().Drain()
	require.Len(packets, 1)
	require.Equal(host.PacketTransfer, packets[0].Kind)
	require.Equal(remoteGateway, packets[0].ToAddress)
	require.Equal(host.NewCoin("upica", 100), *packets[0].Amount)

	// a failed forward queues nothing and keeps the funds
	require.NoError(env.host.Mint(interpreter, host.NewCoin("upica", 10)))
	funds = host.Coins{host.NewCoin("upica", 10)}
	_, err = env.host.Execute(ctx, "alice", interpreter, relay(t, bridgeMsg(hopNetwork, upica(10)), funds), nil)
	require.ErrorIs(err, ErrNotFound)
	require.Zero(env.host.Outbox().Len())
	require.Equal(uint64(10), env.balance(t, interpreter, "upica"))
}

func hookMsg(from xc.NetworkID, user xc.UserOrigin, assets xc.Funds) ExecuteMsg {
	return ExecuteMsg{Ics20MessageHook: &Ics20MessageHookMsg{
		FromNetworkID: from,
		Packet: XcvmPacket{
			UserOrigin: user,
			Salt:       []byte{7},
			Program:    xc.Program{Tag: []byte("inbound")},
			Assets:     assets,
		},
	}}
}

func TestIcs20MessageHook(t *testing.T) {
	require := require.New(t)
	env := newTestEnv(t)

	for _, msg := range []ExecuteMsg{
		{RegisterAsset: &RegisterAssetMsg{ID: 5, NetworkID: localNetwork, Local: NativeReference("upica")}},
		{ForceNetwork: &NetworkItem{ID: remoteNetwork, GatewayAddress: remoteGateway}},
		{ForceNetwork: &NetworkItem{ID: hopNetwork, Ics20: Ics20Config{HookSender: "relayer-hook"}}},
		{ForceNetworkLink: &ForceNetworkLinkMsg{From: localNetwork, To: remoteNetwork, Link: NetworkLink{Ics20Channel: "channel-0"}}},
	} {
		_, err := env.execute(t, admin, msg, nil)
		require.NoError(err)
	}

	bob := xc.UserOrigin{NetworkID: remoteNetwork, UserID: []byte("bob")}
	hookSender := HookSender("channel-0", remoteGateway)
	require.NoError(env.host.Mint(hookSender, host.NewCoin("upica", 300)))

	// wrong relayer
	_, err := env.execute(t, "mallory", hookMsg(remoteNetwork, bob, upica(100)), host.Coins{host.NewCoin("upica", 100)})
	require.ErrorIs(err, ErrUnauthorized)

	// a network may only speak for its own users
	carol := xc.UserOrigin{NetworkID: hopNetwork, UserID: []byte("carol")}
	_, err = env.execute(t, hookSender, hookMsg(remoteNetwork, carol, upica(100)), host.Coins{host.NewCoin("upica", 100)})
	require.ErrorIs(err, ErrUnauthorized)

	// unknown network
	_, err = env.execute(t, hookSender, hookMsg(9, bob, nil), nil)
	require.ErrorIs(err, ErrUnauthorized)
	require.Equal(uint64(300), env.balance(t, hookSender, "upica"))

	receipt, err := env.execute(t, hookSender, hookMsg(remoteNetwork, bob, upica(100)), host.Coins{host.NewCoin("upica", 100)})
	require.NoError(err)
	require.Equal([]string{
		actionIcs20MessageHook,
		actionInstantiate,
		actionInterpreterReady,
		actionDispatch,
	}, gatewayActions(receipt))

	origin := xc.InterpreterOrigin{UserOrigin: bob, Salt: []byte{7}}
	interpreter, err := env.interpreterOf(t, origin)
	require.NoError(err)
	require.Equal(uint64(100), env.balance(t, interpreter, "upica"))
	require.Equal(uint64(200), env.balance(t, hookSender, "upica"))

	state := env.sandbox(t, interpreter)
	require.Equal(origin, state.Origin)
	require.Equal(hookSender, state.LastTip)
	require.Equal([]byte("inbound"), state.LastProgram.Tag)

	// an explicitly trusted hook sender needs no ics20 route
	require.NoError(env.host.Mint("relayer-hook", host.NewCoin("upica", 5)))
	dave := xc.UserOrigin{NetworkID: hopNetwork, UserID: []byte("dave")}
	_, err = env.execute(t, "relayer-hook", hookMsg(hopNetwork, dave, upica(5)), host.Coins{host.NewCoin("upica", 5)})
	require.NoError(err)
	interpreter, err = env.interpreterOf(t, xc.InterpreterOrigin{UserOrigin: dave, Salt: []byte{7}})
	require.NoError(err)
	require.Equal(uint64(5), env.balance(t, interpreter, "upica"))
}

func TestHookSenderIsDerived(t *testing.T) {
	require := require.New(t)

	sender := HookSender("channel-0", remoteGateway)
	require.Equal(sender, HookSender("channel-0", remoteGateway))
	require.NotEqual(sender, HookSender("channel-1", remoteGateway))
	require.NotEqual(sender, HookSender("channel-0", hopGateway))
	require.NoError(host.ValidateAddress(sender))
}
