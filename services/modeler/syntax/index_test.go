// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package syntax

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoiceSource = `using System;

namespace Billing.Domain.Model
{
    public class Invoice : AggregateRootBase<Guid>
    {
        private readonly List<Line> _lines = new List<Line>();

        public decimal Total { get; private set; } = 0m;

        public Invoice(Guid id) : base(id)
        {
        }

        public void RegisterPayment(decimal amount)
        {
            Total -= amount;
        }

        public Money Balance() => new Money(Total);
    }
}
`

func TestIndex_Parse_ClassAndMembers(t *testing.T) {
	ix := NewIndex()

	tree, err := ix.ParseString(context.Background(), invoiceSource)
	require.NoError(t, err)
	assert.False(t, tree.HasErrors())

	class, ok := tree.Class()
	require.True(t, ok)

	assert.Equal(t, "class_declaration", class.NodeType)
	assert.Equal(t, "Invoice", class.Name)
	assert.Equal(t, 4, class.Indent)
	assert.Equal(t, 8, class.MemberIndent())
	assert.Equal(t, byte('{'), invoiceSource[class.BodyOpen])
	assert.Equal(t, byte('}'), invoiceSource[class.BodyClose])
	assert.Equal(t, 4, class.StartLine)
	assert.Equal(t, 5, class.BodyOpenLine)
	assert.Equal(t, 21, class.BodyCloseLine)

	want := []struct {
		kind MemberKind
		name string
	}{
		{KindField, "_lines"},
		{KindProperty, "Total"},
		{KindConstructor, "Invoice"},
		{KindMethod, "RegisterPayment"},
		{KindMethod, "Balance"},
	}
	require.Len(t, class.Members, len(want))
	for i, w := range want {
		assert.Equal(t, w.kind, class.Members[i].Kind, "member %d kind", i)
		assert.Equal(t, w.name, class.Members[i].Name, "member %d name", i)
	}

	register := class.Members[3]
	text := invoiceSource[register.Start:register.End]
	assert.True(t, strings.HasPrefix(text, "public void RegisterPayment(decimal amount)"))
	assert.True(t, strings.HasSuffix(text, "}"))
	assert.Equal(t, 15, register.StartLine)
	assert.Equal(t, 18, register.EndLine)

	total := class.Members[1]
	assert.Equal(t, "public decimal Total { get; private set; } = 0m;", invoiceSource[total.Start:total.End])

	balance := class.Members[4]
	assert.True(t, strings.HasSuffix(invoiceSource[balance.Start:balance.End], ";"))
}

func TestIndex_Parse_BaseTypesAndNamespace(t *testing.T) {
	ix := NewIndex()

	tree, err := ix.ParseString(context.Background(), invoiceSource)
	require.NoError(t, err)
	class, ok := tree.Class()
	require.True(t, ok)
	assert.Equal(t, []string{"AggregateRootBase<Guid>"}, class.BaseTypes)
	assert.Equal(t, "Billing.Domain.Model", tree.Namespace())

	src := "namespace Shop.Domain.Model.Money;\n\npublic class Money : IValueObject, IEquatable<Money>\n{\n}\n"
	tree, err = ix.ParseString(context.Background(), src)
	require.NoError(t, err)
	class, ok = tree.Class()
	require.True(t, ok)
	assert.Equal(t, []string{"IValueObject", "IEquatable<Money>"}, class.BaseTypes)
	assert.Equal(t, "Shop.Domain.Model.Money", tree.Namespace())

	tree, err = ix.ParseString(context.Background(), "public class A\n{\n}\n")
	require.NoError(t, err)
	class, _ = tree.Class()
	assert.Empty(t, class.BaseTypes)
	assert.Empty(t, tree.Namespace())
}

func TestClassNode_Lookups(t *testing.T) {
	tree, err := NewIndex().ParseString(context.Background(), invoiceSource)
	require.NoError(t, err)
	class, ok := tree.Class()
	require.True(t, ok)

	m, ok := class.FindMethod("RegisterPayment")
	require.True(t, ok)
	assert.Equal(t, KindMethod, m.Kind)

	_, ok = class.FindMethod("Invoice")
	assert.False(t, ok, "constructors are not methods")

	last, ok := class.LastMethod()
	require.True(t, ok)
	assert.Equal(t, "Balance", last.Name)

	lastMember, ok := class.LastMember()
	require.True(t, ok)
	assert.Equal(t, "Balance", lastMember.Name)
}

func TestIndex_Parse_NoClass(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"usings only", "using System;\n"},
		{"enum only", "namespace A\n{\n    public enum Color { Red, Green }\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := NewIndex().ParseString(context.Background(), tt.src)
			require.NoError(t, err)
			class, ok := tree.Class()
			assert.False(t, ok)
			assert.Nil(t, class)
		})
	}
}

func TestIndex_Parse_FirstClassDepthFirst(t *testing.T) {
	src := "namespace A\n{\n    public class Outer\n    {\n        public class Inner\n        {\n        }\n    }\n\n    public class Second\n    {\n    }\n}\n"

	tree, err := NewIndex().ParseString(context.Background(), src)
	require.NoError(t, err)
	class, ok := tree.Class()
	require.True(t, ok)
	assert.Equal(t, "Outer", class.Name)
	assert.Empty(t, class.Members)
	require.Len(t, class.Declarations, 1)
	assert.Equal(t, KindOther, class.Declarations[0].Kind)
	assert.Equal(t, "Inner", class.Declarations[0].Name)
}

func TestIndex_Parse_InterfaceAndSingleLineClass(t *testing.T) {
	t.Run("interface", func(t *testing.T) {
		src := "public interface ICustomerRepository : IRepository<Customer, Guid>\n{\n    Task<Customer> GetByEmailAsync(string email, CancellationToken ct);\n}\n"
		tree, err := NewIndex().ParseString(context.Background(), src)
		require.NoError(t, err)
		class, ok := tree.Class()
		require.True(t, ok)
		assert.Equal(t, "interface_declaration", class.NodeType)
		require.Len(t, class.Members, 1)
		assert.Equal(t, "GetByEmailAsync", class.Members[0].Name)
	})

	t.Run("single line", func(t *testing.T) {
		src := "public class Invoice { }"
		tree, err := NewIndex().ParseString(context.Background(), src)
		require.NoError(t, err)
		class, ok := tree.Class()
		require.True(t, ok)
		assert.Equal(t, 0, class.Indent)
		assert.Equal(t, strings.Index(src, "{"), class.BodyOpen)
		assert.Equal(t, strings.LastIndex(src, "}"), class.BodyClose)
		assert.Empty(t, class.Members)
	})
}

func TestIndex_Parse_Validation(t *testing.T) {
	t.Run("too large", func(t *testing.T) {
		ix := NewIndex(WithMaxFileSize(8))
		_, err := ix.ParseString(context.Background(), "public class A { }")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrFileTooLarge))
	})

	t.Run("invalid utf8", func(t *testing.T) {
		_, err := NewIndex().Parse(context.Background(), []byte{0xff, 0xfe, 0xfd})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidContent))
	})

	t.Run("canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewIndex().ParseString(ctx, "public class A { }")
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestIndex_Parse_Deterministic(t *testing.T) {
	ix := NewIndex()
	a, err := ix.ParseString(context.Background(), invoiceSource)
	require.NoError(t, err)
	b, err := ix.ParseString(context.Background(), invoiceSource)
	require.NoError(t, err)

	ca, _ := a.Class()
	cb, _ := b.Class()
	assert.Equal(t, ca, cb)
}

func TestTextHelpers(t *testing.T) {
	src := "ab\n  cd\n\tef"
	assert.Equal(t, 0, LineStart(src, 1))
	assert.Equal(t, 3, LineStart(src, 5))
	assert.Equal(t, 2, LineEnd(src, 0))
	assert.Equal(t, len(src), LineEnd(src, 10))
	assert.Equal(t, 2, LeadingWidth("  cd"))
	assert.Equal(t, 4, LeadingWidth("\tef"))
	assert.Equal(t, "", Spaces(0))
	assert.Equal(t, "    ", Spaces(4))
}
