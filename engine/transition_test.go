package engine_test

import (
	"testing"

	"conversation-service/engine"
	"conversation-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMenu() engine.Menu {
	return engine.Menu{
		Categories: []engine.MenuCategory{
			{
				ID:   1,
				Name: "Main Dishes",
				Items: []engine.MenuItem{
					{ID: 10, Name: "Jollof Rice & Chicken", Price: 250000},
					{ID: 11, Name: "Fried Rice Special", Price: 220000},
				},
			},
			{
				ID:   2,
				Name: "Drinks",
				Items: []engine.MenuItem{
					{ID: 20, Name: "Zobo Drink", Price: 60000},
				},
			},
		},
	}
}

func textEvent(text string) engine.Event {
	return engine.Event{Kind: models.EventText, Text: text}
}

func messageTexts(res engine.Result) []string {
	var out []string
	for _, a := range res.Actions {
		if m, ok := a.(engine.SendMessage); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func TestTransitionIsTotal(t *testing.T) {
	states := []string{
		models.StateIdle,
		models.StateBrowsingCategories,
		models.StateBrowsingItems,
		models.StateCartReview,
		models.StateAwaitingAddress,
		models.StateAwaitingPayment,
		models.StateCompleted,
		"bogus_state",
	}
	kinds := []string{models.EventText, models.EventButton, models.EventPaymentConfirmation}

	for _, state := range states {
		for _, kind := range kinds {
			in := engine.Input{
				State:      state,
				Cart:       []models.CartLine{{ItemID: 10, Name: "Jollof Rice & Chicken", Quantity: 1, UnitPrice: 250000}},
				CategoryID: 1,
				Menu:       sampleMenu(),
				Event:      engine.Event{Kind: kind, Text: "???! unrecognized gibberish"},
			}
			res := engine.Transition(in)

			assert.NotEmpty(t, res.State, "state=%s kind=%s", state, kind)
			if kind != models.EventPaymentConfirmation && state != models.StateIdle && state != models.StateCompleted && state != "bogus_state" && state != models.StateAwaitingAddress {
				// Unrecognized input in a settled state keeps the state and
				// cart and replies with contextual help.
				assert.Equal(t, state, res.State, "state=%s kind=%s", state, kind)
				assert.Equal(t, in.Cart, res.Cart, "state=%s kind=%s", state, kind)
				assert.NotEmpty(t, messageTexts(res), "state=%s kind=%s", state, kind)
			}
		}
	}
}

func TestIdleShowsCategories(t *testing.T) {
	res := engine.Transition(engine.Input{
		State:    models.StateIdle,
		UserName: "Ada",
		Menu:     sampleMenu(),
		Event:    textEvent("hi"),
	})

	assert.Equal(t, models.StateBrowsingCategories, res.State)
	msgs := messageTexts(res)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Ada")
	assert.Contains(t, msgs[0], "Main Dishes")
	assert.Contains(t, msgs[0], "Drinks")
}

func TestIdleWithEmptyMenuStaysIdle(t *testing.T) {
	res := engine.Transition(engine.Input{
		State: models.StateIdle,
		Menu:  engine.Menu{},
		Event: textEvent("hello"),
	})

	assert.Equal(t, models.StateIdle, res.State)
	assert.NotEmpty(t, messageTexts(res))
}

func TestCategorySelection(t *testing.T) {
	res := engine.Transition(engine.Input{
		State: models.StateBrowsingCategories,
		Menu:  sampleMenu(),
		Event: textEvent("1"),
	})

	assert.Equal(t, models.StateBrowsingItems, res.State)
	assert.Equal(t, uint(1), res.CategoryID)
	msgs := messageTexts(res)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Jollof Rice & Chicken")
}

func TestCategoryOutOfRangeRejected(t *testing.T) {
	res := engine.Transition(engine.Input{
		State: models.StateBrowsingCategories,
		Menu:  sampleMenu(),
		Event: textEvent("9"),
	})

	assert.Equal(t, models.StateBrowsingCategories, res.State)
	assert.NotEmpty(t, messageTexts(res))
}

func TestAddItemMergesByItemID(t *testing.T) {
	cart := []models.CartLine{{ItemID: 10, Name: "Jollof Rice & Chicken", Quantity: 1, UnitPrice: 250000}}

	res := engine.Transition(engine.Input{
		State:      models.StateBrowsingItems,
		Cart:       cart,
		CategoryID: 1,
		Menu:       sampleMenu(),
		Event:      textEvent("1 x2"),
	})

	require.Len(t, res.Cart, 1)
	assert.Equal(t, 3, res.Cart[0].Quantity)
	assert.Equal(t, 750000, models.CartTotal(res.Cart))
	// Input cart untouched.
	assert.Equal(t, 1, cart[0].Quantity)
}

func TestQuantityParsing(t *testing.T) {
	cases := []struct {
		text string
		qty  int
		ok   bool
	}{
		{"2", 1, true},
		{"2 x3", 3, true},
		{"2x3", 3, true},
		{"2 3", 3, true},
		{"2 x0", 0, false},
		{"2 x11", 0, false},
		{"x3", 0, false},
		{"nope", 0, false},
	}

	for _, tc := range cases {
		res := engine.Transition(engine.Input{
			State:      models.StateBrowsingItems,
			CategoryID: 1,
			Menu:       sampleMenu(),
			Event:      textEvent(tc.text),
		})
		if tc.ok {
			require.Len(t, res.Cart, 1, "text=%q", tc.text)
			assert.Equal(t, tc.qty, res.Cart[0].Quantity, "text=%q", tc.text)
			assert.Equal(t, uint(11), res.Cart[0].ItemID, "text=%q", tc.text)
		} else {
			assert.Empty(t, res.Cart, "text=%q", tc.text)
		}
	}
}

func TestCheckoutWithEmptyCartRefused(t *testing.T) {
	res := engine.Transition(engine.Input{
		State: models.StateCartReview,
		Menu:  sampleMenu(),
		Event: textEvent("checkout"),
	})

	assert.Equal(t, models.StateCartReview, res.State)
	assert.NotEmpty(t, messageTexts(res))
}

func TestRemoveLine(t *testing.T) {
	cart := []models.CartLine{
		{ItemID: 10, Name: "Jollof Rice & Chicken", Quantity: 1, UnitPrice: 250000},
		{ItemID: 20, Name: "Zobo Drink", Quantity: 2, UnitPrice: 60000},
	}

	res := engine.Transition(engine.Input{
		State: models.StateCartReview,
		Cart:  cart,
		Menu:  sampleMenu(),
		Event: textEvent("remove 1"),
	})

	require.Len(t, res.Cart, 1)
	assert.Equal(t, uint(20), res.Cart[0].ItemID)
}

func TestCancelFromAnyStateClearsCart(t *testing.T) {
	for _, state := range []string{
		models.StateBrowsingCategories,
		models.StateBrowsingItems,
		models.StateCartReview,
		models.StateAwaitingAddress,
		models.StateAwaitingPayment,
	} {
		res := engine.Transition(engine.Input{
			State: state,
			Cart:  []models.CartLine{{ItemID: 10, Quantity: 1, UnitPrice: 250000}},
			Menu:  sampleMenu(),
			Event: textEvent("cancel"),
		})
		assert.Equal(t, models.StateIdle, res.State, "state=%s", state)
		assert.Empty(t, res.Cart, "state=%s", state)
	}
}

func TestShortAddressRejected(t *testing.T) {
	res := engine.Transition(engine.Input{
		State: models.StateAwaitingAddress,
		Cart:  []models.CartLine{{ItemID: 10, Quantity: 1, UnitPrice: 250000}},
		Menu:  sampleMenu(),
		Event: textEvent("abc"),
	})

	assert.Equal(t, models.StateAwaitingAddress, res.State)
	for _, a := range res.Actions {
		_, isPayment := a.(engine.RequestPayment)
		assert.False(t, isPayment)
	}
}

func TestValidAddressEmitsPaymentRequest(t *testing.T) {
	cart := []models.CartLine{
		{ItemID: 10, Name: "Jollof Rice & Chicken", Quantity: 2, UnitPrice: 250000},
	}
	res := engine.Transition(engine.Input{
		State: models.StateAwaitingAddress,
		Cart:  cart,
		Menu:  sampleMenu(),
		Event: textEvent("12 Admiralty Way, Lekki Phase 1, Lagos"),
	})

	assert.Equal(t, models.StateAwaitingPayment, res.State)

	var req engine.RequestPayment
	found := false
	for _, a := range res.Actions {
		if r, ok := a.(engine.RequestPayment); ok {
			req = r
			found = true
		}
	}
	require.True(t, found)
	assert.Equal(t, 500000, req.Amount)
	assert.Equal(t, cart, req.Lines)
	assert.Equal(t, "12 Admiralty Way, Lekki Phase 1, Lagos", req.Address)
}

func TestPaymentConfirmationCrossTalkIgnored(t *testing.T) {
	in := engine.Input{
		State:    models.StateAwaitingPayment,
		Cart:     []models.CartLine{{ItemID: 10, Quantity: 1, UnitPrice: 250000}},
		OrderRef: "ORD-AAAA1111",
		Menu:     sampleMenu(),
		Event: engine.Event{
			Kind:          models.EventPaymentConfirmation,
			OrderRef:      "ORD-BBBB2222",
			PaymentStatus: models.PaymentPaid,
		},
	}
	res := engine.Transition(in)

	assert.Equal(t, models.StateAwaitingPayment, res.State)
	assert.Equal(t, in.Cart, res.Cart)
	assert.Empty(t, res.Actions)
}

func TestPaidConfirmationCompletesOrder(t *testing.T) {
	res := engine.Transition(engine.Input{
		State:    models.StateAwaitingPayment,
		Cart:     []models.CartLine{{ItemID: 10, Quantity: 1, UnitPrice: 250000}},
		OrderRef: "ORD-AAAA1111",
		Menu:     sampleMenu(),
		Event: engine.Event{
			Kind:          models.EventPaymentConfirmation,
			OrderRef:      "ORD-AAAA1111",
			PaymentStatus: models.PaymentPaid,
		},
	})

	assert.Equal(t, models.StateCompleted, res.State)
	assert.Empty(t, res.Cart)
	assert.NotEmpty(t, messageTexts(res))
}

func TestFailedConfirmationReturnsToCartWithCartIntact(t *testing.T) {
	cart := []models.CartLine{{ItemID: 10, Name: "Jollof Rice & Chicken", Quantity: 1, UnitPrice: 250000}}
	res := engine.Transition(engine.Input{
		State:    models.StateAwaitingPayment,
		Cart:     cart,
		OrderRef: "ORD-AAAA1111",
		Menu:     sampleMenu(),
		Event: engine.Event{
			Kind:          models.EventPaymentConfirmation,
			OrderRef:      "ORD-AAAA1111",
			PaymentStatus: models.PaymentFailed,
		},
	})

	assert.Equal(t, models.StateCartReview, res.State)
	assert.Equal(t, cart, res.Cart)
}

// Walks a full ordering cycle through every state.
func TestFullOrderingFlow(t *testing.T) {
	menu := sampleMenu()

	// Greeting.
	res := engine.Transition(engine.Input{State: models.StateIdle, UserName: "Ada", Menu: menu, Event: textEvent("hi")})
	require.Equal(t, models.StateBrowsingCategories, res.State)

	// Pick a category.
	res = engine.Transition(engine.Input{State: res.State, Cart: res.Cart, Menu: menu, Event: textEvent("1")})
	require.Equal(t, models.StateBrowsingItems, res.State)

	// Add two portions.
	res = engine.Transition(engine.Input{State: res.State, Cart: res.Cart, CategoryID: res.CategoryID, Menu: menu, Event: textEvent("1 x2")})
	require.Len(t, res.Cart, 1)

	// Review the cart.
	res = engine.Transition(engine.Input{State: res.State, Cart: res.Cart, CategoryID: res.CategoryID, Menu: menu, Event: textEvent("cart")})
	require.Equal(t, models.StateCartReview, res.State)

	// Checkout.
	res = engine.Transition(engine.Input{State: res.State, Cart: res.Cart, Menu: menu, Event: textEvent("checkout")})
	require.Equal(t, models.StateAwaitingAddress, res.State)

	// Provide a delivery address.
	res = engine.Transition(engine.Input{State: res.State, Cart: res.Cart, Menu: menu, Event: textEvent("12 Admiralty Way, Lekki Phase 1, Lagos")})
	require.Equal(t, models.StateAwaitingPayment, res.State)

	// Payment confirmed.
	res = engine.Transition(engine.Input{
		State: res.State, Cart: res.Cart, OrderRef: "ORD-AAAA1111", Menu: menu,
		Event: engine.Event{Kind: models.EventPaymentConfirmation, OrderRef: "ORD-AAAA1111", PaymentStatus: models.PaymentPaid},
	})
	require.Equal(t, models.StateCompleted, res.State)
	assert.Empty(t, res.Cart)
}
