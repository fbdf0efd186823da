// Package engine implements the conversation state machine as a pure
// transition function. Given the current session state, cart, a menu
// snapshot and one inbound event it computes the next state, the next cart
// and the outbound actions to perform. It never does I/O; the dispatcher
// loads the inputs, commits the result and executes the actions.
package engine

import (
	"strconv"
	"strings"

	"conversation-service/models"
)

// MenuItem is an orderable item in the menu snapshot.
type MenuItem struct {
	ID    uint
	Name  string
	Price int // minor units
}

// MenuCategory is a category with its items, in display order. Users select
// categories and items by 1-based position in these slices.
type MenuCategory struct {
	ID    uint
	Name  string
	Items []MenuItem
}

// Menu is the read-only catalog snapshot the transition runs against.
type Menu struct {
	Categories []MenuCategory
}

// Category returns the category with the given id.
func (m Menu) Category(id uint) (MenuCategory, bool) {
	for _, c := range m.Categories {
		if c.ID == id {
			return c, true
		}
	}
	return MenuCategory{}, false
}

// Event is the engine's view of an inbound event.
type Event struct {
	Kind          string
	Text          string
	OrderRef      string // payment confirmations only
	PaymentStatus string
}

// Action is an outbound instruction for the dispatcher to execute after the
// resulting state has been committed.
type Action interface{ isAction() }

// SendMessage delivers a text message to the user.
type SendMessage struct {
	Text string
}

// RequestPayment asks the dispatcher to create an order from the frozen cart
// snapshot and obtain a payment link. It is the one side-effecting
// transition: the dispatcher performs the external call and only then
// commits the awaiting-payment state with the resulting order reference.
type RequestPayment struct {
	Address string
	Lines   []models.CartLine
	Amount  int
}

// ResendPaymentLink asks the dispatcher to re-send the payment link for the
// session's pending order.
type ResendPaymentLink struct{}

func (SendMessage) isAction()       {}
func (RequestPayment) isAction()    {}
func (ResendPaymentLink) isAction() {}

// Input carries everything the transition function reads.
type Input struct {
	State      string
	Cart       []models.CartLine
	CategoryID uint   // category being browsed, if any
	OrderRef   string // pending order reference while awaiting payment
	Address    string
	UserName   string
	Menu       Menu
	Event      Event
}

// Result is the proposed next session state plus outbound actions. The
// dispatcher commits it transactionally; the engine never mutates stored
// records itself.
type Result struct {
	State      string
	Cart       []models.CartLine
	CategoryID uint
	Address    string
	Actions    []Action
}

func (r *Result) send(text string) {
	r.Actions = append(r.Actions, SendMessage{Text: text})
}

// Transition computes the next state for one inbound event. It is total over
// (state, event kind): unrecognized input always yields a contextual help
// message with state and cart unchanged, so the machine can never get stuck.
func Transition(in Input) Result {
	res := Result{State: in.State, Cart: in.Cart, CategoryID: in.CategoryID, Address: in.Address}

	if in.Event.Kind == models.EventPaymentConfirmation {
		return transitionPaymentConfirmation(in, res)
	}

	text := normalize(in.Event.Text)

	// Global cancel works from any state and restarts the cycle.
	if text == "cancel" || text == "restart" {
		res.State = models.StateIdle
		res.Cart = nil
		res.CategoryID = 0
		res.Address = ""
		res.send(cancelledMessage())
		return res
	}

	switch in.State {
	case models.StateIdle, models.StateCompleted:
		return transitionIdle(in, res)
	case models.StateBrowsingCategories:
		return transitionCategories(in, res, text)
	case models.StateBrowsingItems:
		return transitionItems(in, res, text)
	case models.StateCartReview:
		return transitionCartReview(in, res, text)
	case models.StateAwaitingAddress:
		return transitionAddress(in, res, text)
	case models.StateAwaitingPayment:
		return transitionAwaitingPayment(in, res, text)
	default:
		// Unknown persisted state: recover by restarting the cycle.
		res.State = models.StateIdle
		res.Cart = in.Cart
		return transitionIdle(in, res)
	}
}

func transitionIdle(in Input, res Result) Result {
	if len(in.Menu.Categories) == 0 {
		res.send(menuUnavailableMessage(in.UserName))
		return res
	}
	res.State = models.StateBrowsingCategories
	res.CategoryID = 0
	res.send(welcomeMessage(in.UserName, in.Menu.Categories))
	return res
}

func transitionCategories(in Input, res Result, text string) Result {
	if text == "cart" {
		res.State = models.StateCartReview
		res.send(cartMessage(in.Cart))
		return res
	}

	if choice, ok := parseChoice(text, len(in.Menu.Categories)); ok {
		cat := in.Menu.Categories[choice-1]
		res.State = models.StateBrowsingItems
		res.CategoryID = cat.ID
		if len(cat.Items) == 0 {
			res.send(noItemsMessage(cat.Name))
		} else {
			res.send(itemListMessage(cat))
		}
		return res
	}

	res.send(invalidCategoryMessage(in.Menu.Categories))
	return res
}

func transitionItems(in Input, res Result, text string) Result {
	switch text {
	case "back", "menu", "categories":
		res.State = models.StateBrowsingCategories
		res.CategoryID = 0
		res.send(categoryListMessage(in.Menu.Categories))
		return res
	case "cart":
		res.State = models.StateCartReview
		res.send(cartMessage(in.Cart))
		return res
	}

	cat, found := in.Menu.Category(in.CategoryID)
	if !found {
		// Category disappeared from the catalog; send the user back.
		res.State = models.StateBrowsingCategories
		res.CategoryID = 0
		res.send(categoryListMessage(in.Menu.Categories))
		return res
	}

	if choice, qty, ok := parseSelection(text); ok && choice >= 1 && choice <= len(cat.Items) {
		if qty < 1 || qty > maxQuantityPerAdd {
			res.send(invalidQuantityMessage())
			return res
		}
		item := cat.Items[choice-1]
		res.Cart = mergeLine(in.Cart, item, qty)
		res.send(addedMessage(item, qty, res.Cart))
		return res
	}

	res.send(itemListMessage(cat))
	return res
}

func transitionCartReview(in Input, res Result, text string) Result {
	switch text {
	case "checkout", "pay", "order", "proceed":
		if len(in.Cart) == 0 {
			res.send(emptyCartMessage())
			return res
		}
		res.State = models.StateAwaitingAddress
		res.send(addressPromptMessage())
		return res
	case "menu", "back", "shop", "continue":
		res.State = models.StateBrowsingCategories
		res.CategoryID = 0
		res.send(categoryListMessage(in.Menu.Categories))
		return res
	case "clear", "empty":
		res.Cart = nil
		res.send(cartClearedMessage())
		return res
	}

	if strings.HasPrefix(text, "remove ") {
		if n, ok := parseChoice(strings.TrimPrefix(text, "remove "), len(in.Cart)); ok {
			removed := in.Cart[n-1]
			res.Cart = removeLine(in.Cart, n-1)
			res.send(removedMessage(removed, res.Cart))
			return res
		}
		res.send(invalidRemoveMessage(in.Cart))
		return res
	}

	if len(in.Cart) == 0 {
		res.send(emptyCartMessage())
		return res
	}
	res.send(cartMessage(in.Cart))
	return res
}

func transitionAddress(in Input, res Result, text string) Result {
	if text == "back" {
		res.State = models.StateCartReview
		res.send(cartMessage(in.Cart))
		return res
	}

	address := strings.TrimSpace(in.Event.Text)
	if len(address) < minAddressLength {
		res.send(invalidAddressMessage())
		return res
	}

	lines := make([]models.CartLine, len(in.Cart))
	copy(lines, in.Cart)

	res.State = models.StateAwaitingPayment
	res.Address = address
	res.send(addressSavedMessage(address))
	res.Actions = append(res.Actions, RequestPayment{
		Address: address,
		Lines:   lines,
		Amount:  models.CartTotal(lines),
	})
	return res
}

func transitionAwaitingPayment(in Input, res Result, text string) Result {
	switch text {
	case "status", "check", "paid":
		res.send(stillWaitingMessage(in.OrderRef))
		return res
	case "link", "resend":
		res.Actions = append(res.Actions, ResendPaymentLink{})
		return res
	}
	res.send(awaitingPaymentHelpMessage(in.OrderRef))
	return res
}

func transitionPaymentConfirmation(in Input, res Result) Result {
	if in.State != models.StateAwaitingPayment {
		// Session already moved on; order-level idempotency in the
		// dispatcher covers the record itself.
		return res
	}
	if in.Event.OrderRef != in.OrderRef {
		// Cross-talk guard: confirmation for some other order.
		return res
	}

	switch in.Event.PaymentStatus {
	case models.PaymentPaid:
		res.State = models.StateCompleted
		res.Cart = nil
		res.Address = ""
		res.send(OrderConfirmedMessage(in.OrderRef))
	case models.PaymentFailed, models.PaymentExpired:
		res.State = models.StateCartReview
		res.send(PaymentFailedMessage(in.Event.PaymentStatus, in.Cart))
	}
	return res
}

const (
	maxQuantityPerAdd = 10
	minAddressLength  = 10
)

func normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// parseChoice parses a 1-based numeric selection bounded by max.
func parseChoice(text string, max int) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > max {
		return 0, false
	}
	return n, true
}

// parseSelection parses an item selection with an optional quantity:
// "2" selects item 2 with quantity 1, "2 x3" or "2x3" with quantity 3.
func parseSelection(text string) (choice, qty int, ok bool) {
	qty = 1
	fields := strings.Fields(text)
	switch len(fields) {
	case 1:
		s := fields[0]
		if i := strings.IndexByte(s, 'x'); i > 0 {
			n, err := strconv.Atoi(s[:i])
			q, qerr := strconv.Atoi(s[i+1:])
			if err != nil || qerr != nil {
				return 0, 0, false
			}
			return n, q, n >= 1
		}
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return 0, 0, false
		}
		return n, 1, true
	case 2:
		n, err := strconv.Atoi(fields[0])
		if err != nil || n < 1 {
			return 0, 0, false
		}
		q, err := strconv.Atoi(strings.TrimPrefix(fields[1], "x"))
		if err != nil {
			return 0, 0, false
		}
		return n, q, true
	}
	return 0, 0, false
}

// mergeLine adds qty of item to the cart, merging into an existing line for
// the same item id. The input slice is not mutated.
func mergeLine(cart []models.CartLine, item MenuItem, qty int) []models.CartLine {
	out := make([]models.CartLine, len(cart))
	copy(out, cart)
	for i := range out {
		if out[i].ItemID == item.ID {
			out[i].Quantity += qty
			return out
		}
	}
	return append(out, models.CartLine{
		ItemID:    item.ID,
		Name:      item.Name,
		Quantity:  qty,
		UnitPrice: item.Price,
	})
}

func removeLine(cart []models.CartLine, idx int) []models.CartLine {
	out := make([]models.CartLine, 0, len(cart)-1)
	out = append(out, cart[:idx]...)
	out = append(out, cart[idx+1:]...)
	if len(out) == 0 {
		return nil
	}
	return out
}
