package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSubsetTree(t *testing.T) (root, account, folder *Subset) {
	t.Helper()
	cs := NewSet(nil)
	require.NoError(t, cs.Register([]*Def{
		{Name: "attach_split", Type: TypeBool, Initial: true},
		{Name: "attach_sep", Type: TypeString, Initial: "\n"},
	}))
	root = NewSubset(nil, cs, "")
	account = NewSubset(root, nil, "work")
	folder = NewSubset(account, nil, "inbox")
	return root, account, folder
}

func TestSubsetFallThrough(t *testing.T) {
	root, account, _ := testSubsetTree(t)

	require.True(t, root.Bool("attach_split"))
	require.True(t, account.Bool("attach_split"))

	// Changing the root is visible from the child that never overrode it.
	require.True(t, root.SetString("attach_split", "no", nil).IsSuccess())
	require.False(t, account.Bool("attach_split"))
}

func TestSubsetOverrideAndReset(t *testing.T) {
	root, account, _ := testSubsetTree(t)

	require.True(t, account.SetString("attach_split", "no", nil).IsSuccess())
	require.False(t, account.Bool("attach_split"))
	require.True(t, root.Bool("attach_split"))

	he := account.Lookup("attach_split")
	require.NotNil(t, he)
	require.True(t, he.IsInherited())
	require.Equal(t, TypeBool, he.Type().Base())

	// Reset drops the override; the parent's view governs again, and the
	// element keeps its inherited marker.
	require.True(t, account.Reset("attach_split", nil).IsSuccess())
	require.True(t, account.Bool("attach_split"))
	he = account.Lookup("attach_split")
	require.True(t, he.IsInherited())
	require.Equal(t, TypeUnknown, he.Type().Base())
}

func TestSubsetGrandchildChain(t *testing.T) {
	root, account, folder := testSubsetTree(t)

	require.True(t, folder.SetString("attach_sep", "--", nil).IsSuccess())
	require.Equal(t, "--", folder.Str("attach_sep"))
	require.Equal(t, "\n", account.Str("attach_sep"))
	require.Equal(t, "\n", root.Str("attach_sep"))

	// The full inheritance chain was created, parents first.
	require.NotNil(t, root.Set().Lookup("work:attach_sep"))
	require.NotNil(t, root.Set().Lookup("work:inbox:attach_sep"))
}

func TestSubsetInheritedReadFlag(t *testing.T) {
	_, account, _ := testSubsetTree(t)

	// Force the inheritance element into existence without overriding.
	he := account.CreateInheritance("attach_split")
	require.NotNil(t, he)

	v, rc := account.Set().HeNativeGet(he)
	require.True(t, rc.IsSuccess())
	require.True(t, rc.Has(SucInherited))
	require.Equal(t, true, v)
}

func TestNotifyOnceAndBubbling(t *testing.T) {
	root, account, _ := testSubsetTree(t)

	var rootSaw, accountSaw []Event
	root.Observe(func(ev Event) { rootSaw = append(rootSaw, ev) })
	account.Observe(func(ev Event) { accountSaw = append(accountSaw, ev) })

	require.True(t, account.SetString("attach_split", "no", nil).IsSuccess())
	require.Len(t, accountSaw, 1)
	require.Len(t, rootSaw, 1)
	require.Equal(t, EventSet, rootSaw[0].Kind)
	require.Equal(t, "attach_split", rootSaw[0].Name)

	// An identical set is a no-change success and must not notify.
	rc := account.SetString("attach_split", "no", nil)
	require.True(t, rc.IsSuccess())
	require.True(t, rc.Has(SucNoChange))
	require.Len(t, rootSaw, 1)

	// Events raised on the root do not reach child observers.
	require.True(t, root.SetString("attach_sep", ",", nil).IsSuccess())
	require.Len(t, accountSaw, 1)
	require.Len(t, rootSaw, 2)
}

func TestNotifyOnReset(t *testing.T) {
	root, _, _ := testSubsetTree(t)
	var events []Event
	root.Observe(func(ev Event) { events = append(events, ev) })

	require.True(t, root.SetString("attach_split", "no", nil).IsSuccess())
	require.True(t, root.Reset("attach_split", nil).IsSuccess())
	require.Len(t, events, 2)
	require.Equal(t, EventReset, events[1].Kind)
}

func TestUnknownVariable(t *testing.T) {
	root, _, _ := testSubsetTree(t)
	var errbuf strings.Builder
	rc := root.SetString("no_such_thing", "1", &errbuf)
	require.Equal(t, ErrUnknown, rc.Base())
	require.Contains(t, errbuf.String(), "no_such_thing")

	_, rc = root.GetNative("no_such_thing")
	require.Equal(t, ErrUnknown, rc.Base())
}

func TestReplyRegexRoundTrip(t *testing.T) {
	sub, err := NewDefaultSubset()
	require.NoError(t, err)

	var events []Event
	sub.Observe(func(ev Event) { events = append(events, ev) })

	require.True(t, sub.SetString("reply_regex", "^(Re|Aw):", nil).IsSuccess())
	var out strings.Builder
	require.True(t, sub.GetString("reply_regex", &out).IsSuccess())
	require.Equal(t, "^(Re|Aw):", out.String())
	require.Len(t, events, 1)
	require.Equal(t, EventSet, events[0].Kind)

	rc := sub.SetString("reply_regex", "^(Re|Aw):", nil)
	require.True(t, rc.Has(SucNoChange))
	require.Len(t, events, 1)
}

func TestCoreVariablesRegister(t *testing.T) {
	sub, err := NewDefaultSubset()
	require.NoError(t, err)

	require.True(t, sub.Bool("mailcap_sanitize"))
	require.True(t, sub.Bool("digest_collapse"))
	require.Equal(t, QuadYes, sub.Quad("crypt_verify_sig"))
	require.NotNil(t, sub.Slist("mailcap_path"))
	require.NotZero(t, sub.Slist("mailcap_path").Count())
	require.Equal(t, "lpr", sub.Str("print_command"))
}
