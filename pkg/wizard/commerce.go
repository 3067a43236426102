package wizard

import (
	"fmt"
	"strings"

	"github.com/ibsar/voicedialog/pkg/backend"
	"github.com/ibsar/voicedialog/pkg/utterance"
)

// Commerce wizard states.
const (
	CommerceIdle                State = "IDLE"
	CommerceWaitSearchQuery     State = "WAIT_SEARCH_QUERY"
	CommerceWaitAddProductName  State = "WAIT_ADD_PRODUCT_NAME"
	CommerceWaitRetryLookup     State = "WAIT_RETRY_LOOKUP"
	CommerceWaitSelectProduct   State = "WAIT_SELECT_PRODUCT"
	CommerceWaitAddQty          State = "WAIT_ADD_QTY"
	CommerceWaitConfirmCheckout State = "WAIT_CONFIRM_CHECKOUT"
	CommerceWaitConfirmEmpty    State = "WAIT_CONFIRM_EMPTY"
)

// Quantities a single add accepts.
const (
	MinQuantity = 1
	MaxQuantity = 9
)

// strongMatch is the score above which a lone candidate is taken as is.
const strongMatch = 0.5

type commerce struct {
	entry string
	cfg   Config

	state      State
	lookup     State
	product    backend.Product
	candidates []backend.Product
	waiting    Op
	seed       Seed
	quantity   int
}

func newCommerce(entry string, cfg Config, seed Seed) Wizard {
	return &commerce{entry: entry, cfg: cfg, state: CommerceIdle, seed: seed}
}

func (c *commerce) Entry() string   { return c.entry }
func (c *commerce) State() State    { return c.state }
func (c *commerce) Sensitive() bool { return false }

func (c *commerce) Start() Reply {
	c.state = CommerceIdle
	c.product = backend.Product{}
	c.candidates = nil
	c.quantity = 0
	seed := c.seed
	c.seed = Seed{}

	switch c.entry {
	case "commerce.search":
		c.lookup = CommerceWaitSearchQuery
		return c.seededLookup(seed)
	case "commerce.add":
		c.lookup = CommerceWaitAddProductName
		if seed.Quantity >= MinQuantity && seed.Quantity <= MaxQuantity {
			c.quantity = seed.Quantity
		}
		return c.seededLookup(seed)
	case "commerce.cart", "commerce.checkout":
		c.waiting = OpCart
		return call("", Call{Op: OpCart})
	case "commerce.empty":
		c.state = CommerceWaitConfirmEmpty
		return ask("متأكد تحب تفرّغ السلة؟ قول نعم ولا لا.")
	}
	return done("")
}

// seededLookup searches for the seeded product at once, or asks for one.
func (c *commerce) seededLookup(seed Seed) Reply {
	query := backend.ProductQuery(seed.Query)
	if query == "" {
		return c.askLookup()
	}
	c.state = c.lookup
	c.waiting = OpFindProduct
	return call("", Call{Op: OpFindProduct, Query: query})
}

func (c *commerce) askLookup() Reply {
	c.state = c.lookup
	if c.lookup == CommerceWaitAddProductName {
		return ask("شنوة المنتج اللي تحب تزيدو للسلة؟ قول اسمو.")
	}
	return ask("شنوة تحب تلوّج؟ قول اسم المنتج.")
}

func (c *commerce) Handle(in Input) Reply {
	if c.waiting != "" {
		return Reply{Prompt: "لحظة."}
	}
	if utterance.IsCancel(in.Text) {
		c.state = CommerceIdle
		return done(promptCancelled)
	}

	switch c.state {
	case CommerceWaitSearchQuery, CommerceWaitAddProductName:
		query := backend.ProductQuery(in.Text)
		if query == "" {
			return ask("ما سمعتش اسم المنتج. عاود قولو.")
		}
		c.waiting = OpFindProduct
		return call("", Call{Op: OpFindProduct, Query: query})

	case CommerceWaitRetryLookup:
		switch yesNo(in.Text) {
		case answerYes:
			return c.askLookup()
		case answerNo:
			c.state = CommerceIdle
			return done(promptCancelled)
		}
		return ask("قول نعم ولا لا.")

	case CommerceWaitSelectProduct:
		if utterance.IsNo(in.Text) && !utterance.IsYes(in.Text) {
			c.state = CommerceIdle
			return done(promptCancelled)
		}
		if len(in.Numbers) == 0 || in.Numbers[0] < 1 || in.Numbers[0] > len(c.candidates) {
			return ask(fmt.Sprintf("اختار رقم من 1 حتى %d.", len(c.candidates)))
		}
		return c.askQuantity(c.candidates[in.Numbers[0]-1])

	case CommerceWaitAddQty:
		if len(in.Numbers) == 0 || in.Numbers[0] < MinQuantity || in.Numbers[0] > MaxQuantity {
			return ask("قول رقم من 1 حتى 9.")
		}
		c.waiting = OpAddToCart
		return call("", Call{Op: OpAddToCart, Product: c.product, Quantity: in.Numbers[0]})

	case CommerceWaitConfirmCheckout:
		switch yesNo(in.Text) {
		case answerYes:
			c.waiting = OpCheckout
			return call("لحظة.", Call{Op: OpCheckout})
		case answerNo:
			c.state = CommerceIdle
			return done("باهي، ما أكدناش الطلب.")
		}
		return ask("قول نعم ولا لا.")

	case CommerceWaitConfirmEmpty:
		switch yesNo(in.Text) {
		case answerYes:
			c.waiting = OpEmptyCart
			return call("", Call{Op: OpEmptyCart})
		case answerNo:
			c.state = CommerceIdle
			return done("باهي، خلينا السلة كيما هي.")
		}
		return ask("قول نعم ولا لا.")
	}
	return done("")
}

func (c *commerce) askQuantity(p backend.Product) Reply {
	c.product = p
	c.candidates = nil
	c.state = CommerceWaitAddQty
	if qty := c.quantity; qty > 0 {
		c.quantity = 0
		c.waiting = OpAddToCart
		return call(fmt.Sprintf("لقيت %s.", DescribeProduct(p)), Call{Op: OpAddToCart, Product: p, Quantity: qty})
	}
	return ask(fmt.Sprintf("لقيت %s. قدّاش تحب نزيد؟ قول رقم من 1 حتى 9.", DescribeProduct(p)))
}

func (c *commerce) Resume(out Outcome) Reply {
	if c.waiting == "" || out.Op != c.waiting {
		return Reply{}
	}
	c.waiting = ""

	if out.Err != nil {
		c.state = CommerceIdle
		return done(failure(out.Err, "صار مشكل، عاود جرّب."))
	}

	switch out.Op {
	case OpFindProduct:
		return c.matched(out.Matches)

	case OpAddToCart:
		c.state = CommerceIdle
		return done(fmt.Sprintf("زدت %s للسلة. %s", c.product.Name, DescribeCart(out.Cart, c.cfg.HistoryLimit)))

	case OpCart:
		if c.entry == "commerce.checkout" {
			if out.Cart.Empty() {
				c.state = CommerceIdle
				return done("السلة فارغة، ما فما شي باش نخلصو.")
			}
			c.state = CommerceWaitConfirmCheckout
			return ask(fmt.Sprintf("عندك %d قضية بـ %s دينار. الخلاص بعد التوصيل. نأكد الطلب؟ قول نعم ولا لا.",
				out.Cart.Count(), Amount(out.Cart.Total())))
		}
		c.state = CommerceIdle
		return done(DescribeCart(out.Cart, c.cfg.HistoryLimit))

	case OpCheckout:
		c.state = CommerceIdle
		return done(fmt.Sprintf("الطلب متاعك تسجل. رصيدك توا %s دينار.", Amount(out.Order.NewBalance)))

	case OpEmptyCart:
		c.state = CommerceIdle
		return done("فرّغنا السلة.")
	}
	return done("")
}

func (c *commerce) matched(matches []backend.Match) Reply {
	if len(matches) == 0 {
		c.state = CommerceWaitRetryLookup
		return ask("هالمنتج ماشي موجود. تحب تعاود؟ قول نعم ولا لا.")
	}

	top := matches[0]
	lone := len(matches) == 1 && top.Score > strongMatch
	exact := top.Score == 1 && (len(matches) == 1 || matches[1].Score < 1)
	if lone || exact {
		return c.askQuantity(top.Product)
	}

	n := min(len(matches), c.cfg.Candidates)
	c.candidates = make([]backend.Product, 0, n)
	parts := make([]string, 0, n)
	for i, m := range matches[:n] {
		c.candidates = append(c.candidates, m.Product)
		parts = append(parts, fmt.Sprintf("%d، %s", i+1, DescribeProduct(m.Product)))
	}
	c.state = CommerceWaitSelectProduct
	return ask("لقيت أكثر من منتوج. " + strings.Join(parts, ". ") + ". اختار رقم.")
}
