package engine

import (
	"fmt"
	"strings"

	"conversation-service/models"
)

// Message templates for every prompt the bot sends. Kept together so the
// conversational copy can be reviewed and changed in one place.

func welcomeMessage(name string, categories []MenuCategory) string {
	if name == "" {
		name = "there"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Welcome to FoodBot, %s! 🍽️\n\n", name)
	b.WriteString("Here are our menu categories:\n\n")
	writeCategoryList(&b, categories)
	b.WriteString("\nReply with a number to see items, or type 'cart' to view your cart.")
	return b.String()
}

func menuUnavailableMessage(name string) string {
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("Welcome, %s! 🍽️\n\nSorry, our menu is currently unavailable. Please try again later.", name)
}

func categoryListMessage(categories []MenuCategory) string {
	var b strings.Builder
	b.WriteString("📋 Menu Categories:\n\n")
	writeCategoryList(&b, categories)
	b.WriteString("\nReply with a number to see items.")
	return b.String()
}

func invalidCategoryMessage(categories []MenuCategory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Please reply with a valid number (1-%d).\n\n", len(categories))
	writeCategoryList(&b, categories)
	return b.String()
}

func writeCategoryList(b *strings.Builder, categories []MenuCategory) {
	for i, c := range categories {
		fmt.Fprintf(b, "%d. %s\n", i+1, c.Name)
	}
}

func itemListMessage(cat MenuCategory) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🍽️ %s:\n\n", cat.Name)
	for i, item := range cat.Items {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, item.Name, models.FormatAmount(item.Price))
	}
	b.WriteString("\nReply with an item number to add it (e.g. '1' or '1 x2'), 'cart' to review, or 'back' for categories.")
	return b.String()
}

func noItemsMessage(categoryName string) string {
	return fmt.Sprintf("No items available in %s right now.\n\nType 'back' to see categories.", categoryName)
}

func invalidQuantityMessage() string {
	return fmt.Sprintf("Please use a quantity between 1 and %d.", maxQuantityPerAdd)
}

func addedMessage(item MenuItem, qty int, cart []models.CartLine) string {
	return fmt.Sprintf(
		"✅ Added %dx %s to your cart.\n\nCart total: %s (%d items)\n\nReply with another item number, 'cart' to review, or 'back' for categories.",
		qty, item.Name, models.FormatAmount(models.CartTotal(cart)), models.CartItemCount(cart),
	)
}

func cartMessage(cart []models.CartLine) string {
	if len(cart) == 0 {
		return emptyCartMessage()
	}
	var b strings.Builder
	b.WriteString("🛒 Your Cart:\n\n")
	for i, l := range cart {
		fmt.Fprintf(&b, "%d. %dx %s - %s\n", i+1, l.Quantity, l.Name, models.FormatAmount(l.Subtotal()))
	}
	b.WriteString("\n━━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "Total: %s\n\n", models.FormatAmount(models.CartTotal(cart)))
	b.WriteString("Reply:\n")
	b.WriteString("• 'checkout' - Proceed to payment\n")
	b.WriteString("• 'menu' - Continue shopping\n")
	b.WriteString("• 'remove 1' - Remove item #1\n")
	b.WriteString("• 'clear' - Empty cart")
	return b.String()
}

func emptyCartMessage() string {
	return "🛒 Your cart is empty!\n\nType 'menu' to browse our menu and add items."
}

func cartClearedMessage() string {
	return "🗑️ Cart cleared!\n\nType 'menu' to start shopping again."
}

func removedMessage(removed models.CartLine, cart []models.CartLine) string {
	if len(cart) == 0 {
		return fmt.Sprintf("✅ Removed %s.\n\nYour cart is now empty. Type 'menu' to shop.", removed.Name)
	}
	return fmt.Sprintf("✅ Removed %s.\n\n%s", removed.Name, cartMessage(cart))
}

func invalidRemoveMessage(cart []models.CartLine) string {
	return fmt.Sprintf("Invalid remove command. Use 'remove 1' to remove item #1.\n\n%s", cartMessage(cart))
}

func addressPromptMessage() string {
	return "Great! Let's complete your order.\n\nPlease enter your delivery address:"
}

func invalidAddressMessage() string {
	return "Please provide a more detailed delivery address.\n\nExample: 123 Main Street, Lekki Phase 1, Lagos\n\nOr type 'back' to return to your cart."
}

func addressSavedMessage(address string) string {
	return fmt.Sprintf("📍 Delivery address saved:\n%s\n\nGenerating your payment link...", address)
}

// PaymentLinkMessage is rendered by the dispatcher once the payment link has
// been created; exported because the engine never sees the link itself.
func PaymentLinkMessage(orderRef string, amount int, url string) string {
	return fmt.Sprintf(
		"💳 Payment Required\n\nOrder: %s\nTotal: %s\n\nPlease click the link below to pay securely:\n%s\n\nOnce paid, your order will be processed automatically.",
		orderRef, models.FormatAmount(amount), url,
	)
}

// PaymentUnavailableMessage is sent when the payment link could not be
// created; the session stays where it was so the user can retry.
func PaymentUnavailableMessage() string {
	return "⚠️ Sorry, we couldn't generate a payment link at the moment. Please try again in a few minutes."
}

// PaymentExpiredMessage is sent by the reconciliation sweep when a pending
// payment times out.
func PaymentExpiredMessage(orderRef string) string {
	return fmt.Sprintf(
		"⌛ Your payment for order %s has expired.\n\nYour cart is still saved. Reply 'checkout' to try again, or 'cancel' to start over.",
		orderRef,
	)
}

func stillWaitingMessage(orderRef string) string {
	return fmt.Sprintf(
		"⏳ We haven't received your payment for order %s yet.\n\nPlease complete payment using the link sent earlier. If you've already paid, please wait a moment.",
		orderRef,
	)
}

func awaitingPaymentHelpMessage(orderRef string) string {
	return fmt.Sprintf(
		"⏳ Awaiting payment for order %s.\n\nReply:\n• 'status' - Check payment status\n• 'link' - Resend payment link\n• 'cancel' - Cancel order",
		orderRef,
	)
}

// OrderConfirmedMessage is sent when a pending order's payment is
// confirmed; exported for the reconciliation sweep's repair path.
func OrderConfirmedMessage(orderRef string) string {
	return fmt.Sprintf(
		"✅ Payment confirmed!\n\nYour order %s has been paid.\nWe'll start preparing your food right away!\n\nThank you for your order! 🙏\n\nSend any message to start a new order.",
		orderRef,
	)
}

// PaymentFailedMessage prompts a retry after a failed or expired payment.
func PaymentFailedMessage(status string, cart []models.CartLine) string {
	verb := "failed"
	if status == models.PaymentExpired {
		verb = "expired"
	}
	return fmt.Sprintf(
		"❌ Your payment %s.\n\nYour cart is still saved. Reply 'checkout' to try again, or 'cancel' to start over.\n\n%s",
		verb, cartMessage(cart),
	)
}

func cancelledMessage() string {
	return "Order cancelled.\n\nSend any message to start again."
}
