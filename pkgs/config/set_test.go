package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testSet(t *testing.T, defs ...*Def) *Set {
	t.Helper()
	cs := NewSet(nil)
	require.NoError(t, cs.Register(defs))
	return cs
}

func TestBoolSetGet(t *testing.T) {
	cs := testSet(t, &Def{Name: "weed", Type: TypeBool, Initial: true})
	he := cs.Lookup("weed")
	require.NotNil(t, he)

	v, rc := cs.HeNativeGet(he)
	require.True(t, rc.IsSuccess())
	require.Equal(t, true, v)

	rc = cs.HeStringSet(he, "no", nil)
	require.True(t, rc.IsSuccess())
	require.False(t, rc.Has(SucNoChange))

	var out strings.Builder
	rc = cs.HeStringGet(he, &out)
	require.True(t, rc.IsSuccess())
	require.Equal(t, "no", out.String())
}

func TestBoolRejectsGarbage(t *testing.T) {
	cs := testSet(t, &Def{Name: "weed", Type: TypeBool, Initial: false})
	var errbuf strings.Builder
	rc := cs.HeStringSet(cs.Lookup("weed"), "maybe", &errbuf)
	require.Equal(t, ErrInvalid, rc.Base())
	require.True(t, rc.Has(InvType))
	require.Contains(t, errbuf.String(), "maybe")
}

func TestSetNoChangeFlag(t *testing.T) {
	cs := testSet(t, &Def{Name: "charset", Type: TypeString, Initial: "utf-8"})
	he := cs.Lookup("charset")

	rc := cs.HeStringSet(he, "latin1", nil)
	require.True(t, rc.IsSuccess())
	require.False(t, rc.Has(SucNoChange))

	rc = cs.HeStringSet(he, "latin1", nil)
	require.True(t, rc.IsSuccess())
	require.True(t, rc.Has(SucNoChange))
}

func TestValidatorRefusal(t *testing.T) {
	refused := errors.New("value refused")
	cs := testSet(t, &Def{
		Name: "charset", Type: TypeString, Initial: "utf-8",
		Validator: func(def *Def, value any) error {
			if value.(string) == "bad" {
				return refused
			}
			return nil
		},
	})
	he := cs.Lookup("charset")

	var errbuf strings.Builder
	rc := cs.HeStringSet(he, "bad", &errbuf)
	require.Equal(t, ErrInvalid, rc.Base())
	require.True(t, rc.Has(InvValidator))
	require.Equal(t, "value refused", errbuf.String())

	// Store unchanged after refusal.
	v, _ := cs.HeNativeGet(he)
	require.Equal(t, "utf-8", v)
}

func TestValidatorNotRunOnNoChange(t *testing.T) {
	calls := 0
	cs := testSet(t, &Def{
		Name: "charset", Type: TypeString, Initial: "utf-8",
		Validator: func(def *Def, value any) error {
			calls++
			return nil
		},
	})
	he := cs.Lookup("charset")

	cs.HeStringSet(he, "utf-8", nil)
	require.Equal(t, 0, calls)
	cs.HeStringSet(he, "latin1", nil)
	require.Equal(t, 1, calls)
}

func TestNumberRangeAndNotNegative(t *testing.T) {
	cs := testSet(t,
		&Def{Name: "history", Type: TypeNumber, Initial: 10},
		&Def{Name: "timeout", Type: TypeNumber | FlagNotNegative, Initial: 0},
	)

	rc := cs.HeStringSet(cs.Lookup("history"), "70000", nil)
	require.Equal(t, ErrInvalid, rc.Base())
	require.True(t, rc.Has(InvType))

	var errbuf strings.Builder
	rc = cs.HeStringSet(cs.Lookup("timeout"), "-1", &errbuf)
	require.Equal(t, ErrInvalid, rc.Base())
	require.True(t, rc.Has(InvValidator))
	require.Contains(t, errbuf.String(), "negative")
}

func TestNumberPlusMinusEquals(t *testing.T) {
	cs := testSet(t, &Def{Name: "history", Type: TypeNumber, Initial: 10})
	he := cs.Lookup("history")

	require.True(t, cs.HeStringPlusEquals(he, "5", nil).IsSuccess())
	v, _ := cs.HeNativeGet(he)
	require.Equal(t, int64(15), v)

	require.True(t, cs.HeStringMinusEquals(he, "20", nil).IsSuccess())
	v, _ = cs.HeNativeGet(he)
	require.Equal(t, int64(-5), v)
}

func TestBoolPlusEqualsNotImplemented(t *testing.T) {
	cs := testSet(t, &Def{Name: "weed", Type: TypeBool, Initial: false})
	rc := cs.HeStringPlusEquals(cs.Lookup("weed"), "yes", nil)
	require.Equal(t, ErrInvalid, rc.Base())
	require.True(t, rc.Has(InvNotImpl))
}

func TestStringPlusEqualsConcatenates(t *testing.T) {
	cs := testSet(t, &Def{Name: "attach_sep", Type: TypeString, Initial: "a"})
	he := cs.Lookup("attach_sep")
	require.True(t, cs.HeStringPlusEquals(he, "b", nil).IsSuccess())
	v, _ := cs.HeNativeGet(he)
	require.Equal(t, "ab", v)
}

func TestQuadValues(t *testing.T) {
	cs := testSet(t, &Def{Name: "crypt_verify_sig", Type: TypeQuad, Initial: QuadYes})
	he := cs.Lookup("crypt_verify_sig")

	for _, name := range []string{"no", "yes", "ask-no", "ask-yes"} {
		require.True(t, cs.HeStringSet(he, name, nil).IsSuccess(), name)
		var out strings.Builder
		cs.HeStringGet(he, &out)
		require.Equal(t, name, out.String())
	}

	rc := cs.HeStringSet(he, "ask-maybe", nil)
	require.Equal(t, ErrInvalid, rc.Base())
}

func TestSlistAddRemove(t *testing.T) {
	cs := testSet(t, &Def{Name: "mailcap_path", Type: TypeSlist, Initial: "a:b", Data: SepColon})
	he := cs.Lookup("mailcap_path")

	v, _ := cs.HeNativeGet(he)
	require.Equal(t, []string{"a", "b"}, v.(*Slist).Strings())

	require.True(t, cs.HeStringPlusEquals(he, "c", nil).IsSuccess())
	// Adding an existing member is a no-change under the default dupe policy.
	rc := cs.HeStringPlusEquals(he, "a", nil)
	require.True(t, rc.Has(SucNoChange))

	require.True(t, cs.HeStringMinusEquals(he, "b", nil).IsSuccess())
	v, _ = cs.HeNativeGet(he)
	require.Equal(t, []string{"a", "c"}, v.(*Slist).Strings())

	rc = cs.HeStringMinusEquals(he, "missing", nil)
	require.True(t, rc.Has(SucNoChange))
}

func TestRegexCompileAndNegation(t *testing.T) {
	cs := testSet(t, &Def{Name: "reply_regex", Type: TypeRegex, Initial: ""})
	he := cs.Lookup("reply_regex")

	require.True(t, cs.HeStringSet(he, "^(Re|Aw):", nil).IsSuccess())
	v, _ := cs.HeNativeGet(he)
	rx := v.(*Regex)
	require.Equal(t, "^(Re|Aw):", rx.Pattern)
	require.True(t, rx.Matches("Re: hello"))
	require.False(t, rx.Matches("hello"))

	require.True(t, cs.HeStringSet(he, "!^(Re|Aw):", nil).IsSuccess())
	v, _ = cs.HeNativeGet(he)
	rx = v.(*Regex)
	require.True(t, rx.Not)
	require.False(t, rx.Matches("Re: hello"))
	require.True(t, rx.Matches("hello"))

	var errbuf strings.Builder
	rc := cs.HeStringSet(he, "([", &errbuf)
	require.Equal(t, ErrInvalid, rc.Base())
}

func TestSortPrefixes(t *testing.T) {
	sd := &SortDef{
		Methods:      map[string]int{"date": 1, "subject": 2},
		AllowReverse: true,
		AllowLast:    true,
	}
	cs := testSet(t, &Def{Name: "sort", Type: TypeSort, Initial: 1, Data: sd})
	he := cs.Lookup("sort")

	require.True(t, cs.HeStringSet(he, "reverse-subject", nil).IsSuccess())
	v, _ := cs.HeNativeGet(he)
	require.Equal(t, 2|SortReverse, v)

	var out strings.Builder
	cs.HeStringGet(he, &out)
	require.Equal(t, "reverse-subject", out.String())

	require.True(t, cs.HeStringSet(he, "last-date", nil).IsSuccess())
	v, _ = cs.HeNativeGet(he)
	require.Equal(t, 1|SortLast, v)
}

func TestMbtableSplitsRunes(t *testing.T) {
	cs := testSet(t, &Def{Name: "to_chars", Type: TypeMbtable, Initial: " +TCFL"})
	v, _ := cs.HeNativeGet(cs.Lookup("to_chars"))
	mb := v.(*MbTable)
	require.Equal(t, 6, len(mb.Chars))
	require.Equal(t, "+", mb.Get(1))
	require.Equal(t, "", mb.Get(99))
}

func TestResetRestoresInitial(t *testing.T) {
	cs := testSet(t, &Def{Name: "charset", Type: TypeString, Initial: "utf-8"})
	he := cs.Lookup("charset")
	cs.HeStringSet(he, "latin1", nil)
	require.True(t, cs.HeHasBeenSet(he))

	require.True(t, cs.HeReset(he, nil).IsSuccess())
	v, _ := cs.HeNativeGet(he)
	require.Equal(t, "utf-8", v)
	require.False(t, cs.HeHasBeenSet(he))
}

func TestStartupLatch(t *testing.T) {
	cs := testSet(t, &Def{Name: "tmpdir", Type: TypePath | FlagOnStartup, Initial: "/tmp"})
	he := cs.Lookup("tmpdir")

	require.True(t, cs.HeStringSet(he, "/var/tmp", nil).IsSuccess())

	cs.DoneStartup()
	var errbuf strings.Builder
	rc := cs.HeStringSet(he, "/other", &errbuf)
	require.Equal(t, ErrInvalid, rc.Base())
	require.True(t, rc.Has(InvValidator))

	v, _ := cs.HeNativeGet(he)
	require.Equal(t, "/var/tmp", v)
}

func TestDeprecatedDiscardsWithWarning(t *testing.T) {
	cs := testSet(t, &Def{Name: "old_knob", Type: TypeBool | FlagDeprecated, Initial: false})
	he := cs.Lookup("old_knob")
	rc := cs.HeStringSet(he, "yes", nil)
	require.True(t, rc.IsSuccess())
	require.True(t, rc.Has(SucWarning))
	v, _ := cs.HeNativeGet(he)
	require.Equal(t, false, v)
}

func TestDeleteOnlyMyVar(t *testing.T) {
	cs := testSet(t, &Def{Name: "weed", Type: TypeBool, Initial: true})
	rc := cs.HeDelete(cs.Lookup("weed"), nil)
	require.Equal(t, ErrInvalid, rc.Base())
	require.True(t, rc.Has(InvNotImpl))

	he, res := cs.CreateVariable("my_tool", "vim", nil)
	require.True(t, res.IsSuccess())
	require.True(t, cs.HeDelete(he, nil).IsSuccess())
	require.Nil(t, cs.Lookup("my_tool"))
}

func TestInitialSetAndGet(t *testing.T) {
	cs := testSet(t, &Def{Name: "charset", Type: TypeString, Initial: "utf-8"})
	he := cs.Lookup("charset")

	require.True(t, cs.HeInitialSet(he, "latin1", nil).IsSuccess())
	var out strings.Builder
	require.True(t, cs.HeInitialGet(he, &out).IsSuccess())
	require.Equal(t, "latin1", out.String())

	// Current value is untouched by an initial-set.
	v, _ := cs.HeNativeGet(he)
	require.Equal(t, "utf-8", v)

	// But a reset now lands on the new initial.
	require.True(t, cs.HeReset(he, nil).IsSuccess())
	v, _ = cs.HeNativeGet(he)
	require.Equal(t, "latin1", v)
}

func TestRegisterDuplicateName(t *testing.T) {
	cs := NewSet(nil)
	defs := []*Def{{Name: "weed", Type: TypeBool, Initial: true}}
	require.NoError(t, cs.Register(defs))
	require.Error(t, cs.Register(defs))
}
