package nlu

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"github.com/ibsar/voicedialog/pkg/utterance"
)

type intentDef struct {
	intent   Intent
	keywords []string
}

// Order matters on equal scores: earlier definitions win.
var defaultDefs = []intentDef{
	{IntentHome, []string{
		"home", "dar", "accueil", "الرئيسية", "رجعني", "بداية", "main", "menu", "principal",
		"هزني للدار", "الصفحة الاولى", "page d'accueil",
	}},
	{IntentLogin, []string{
		"login", "connexion", "signin", "دخول", "نسجل دخول", "log in", "connecter", "ندخل", "connect",
		"identifiant", "تسجيل الدخول", "ادخل",
	}},
	{IntentRegister, []string{
		"register", "signup", "compte", "حساب", "تسجيل", "nouveau", "new", "انشاء", "create",
		"حل كونط", "نعمل كونط", "حساب جديد", "inscrire", "inscription",
	}},
	{IntentBank, []string{
		"bank", "banque", "compte bancaire", "بنك", "البنك", "argent",
		"هزني للبنك", "الكونط", "حسابي البنكي", "el banka", "lbanque",
	}},
	{IntentProducts, []string{
		"products", "shopping", "achats", "market", "تسوق", "شراء", "store", "magasin",
		"marche", "souk", "السوق", "المغازة", "نقضي", "na9dhi", "نحب نشري", "buy something",
	}},
	{IntentBankTransfer, []string{
		"transfer", "virement", "verser", "envoyer", "hawel", "baath", "ab3ath", "حول", "ارسال", "ابعث",
		"versilou", "sablou", "صب ل", "بعث ل", "نحول",
	}},
	{IntentGetBalance, []string{
		"balance", "solde", "flousi", "rside", "رصيدي", "فلوسي", "flouss",
		"kadech 3andi", "solde mte3i", "compte fih", "الرصيد", "رصيد",
	}},
	{IntentHistory, []string{
		"history", "historique", "transactions", "عمليات", "العمليات", "اخر العمليات", "تاريخ",
	}},
	{IntentAddItem, []string{
		"add", "ajouter", "zid", "chri", "achete", "زيد", "شري", "اضافة",
		"hot", "hott", "jib", "jeb", "جيب", "حط",
	}},
	{IntentCheckPrice, []string{
		"price", "prix", "soum", "kadech", "combien", "سوم", "قداش", "سعر", "b9adeh", "bgadech", "بقداش",
	}},
	{IntentCart, []string{
		"cart", "panier", "السلة", "سلة", "الكادي",
	}},
	{IntentHelp, []string{
		"help", "aide", "3aweni", "musada", "مساعدة", "عاوني", "عاونی",
	}},
	{IntentRepeat, []string{
		"repeat", "repete", "encore", "عاود", "اعاده", "عاودلي",
	}},
	{IntentBack, []string{
		"back", "retour", "ارجع", "رجوع", "ورا",
	}},
}

// recipientMarkers precede the name of a transfer recipient.
var recipientMarkers = map[string]struct{}{
	"l": {}, "li": {}, "el": {}, "ila": {}, "for": {}, "pour": {}, "ل": {}, "الي": {},
}

// itemFillers are dropped from an item name.
var itemFillers = map[string]struct{}{
	"nheb": {}, "nhab": {}, "bghit": {}, "abghi": {}, "please": {}, "aman": {}, "bellehi": {}, "نحب": {},
}

type compiledDef struct {
	intent   Intent
	keywords []string
}

// Keyword classifies by weighted keyword hits over normalized text. A whole
// word hit weighs 3, a substring hit 1.
type Keyword struct {
	defs []compiledDef
}

// NewKeyword creates a keyword classifier over the built-in vocabulary.
func NewKeyword() *Keyword {
	k := &Keyword{defs: make([]compiledDef, 0, len(defaultDefs))}
	for _, d := range defaultDefs {
		cd := compiledDef{intent: d.intent}
		for _, kw := range d.keywords {
			if n := utterance.Normalize(kw); n != "" {
				cd.keywords = append(cd.keywords, n)
			}
		}
		k.defs = append(k.defs, cd)
	}
	return k
}

// Classify never fails.
func (k *Keyword) Classify(_ context.Context, text string) (Result, error) {
	normalized := utterance.Normalize(text)
	if normalized == "" {
		return Unknown("keyword"), nil
	}
	padded := " " + normalized + " "

	best, bestScore := -1, 0
	for i, d := range k.defs {
		score := 0
		for _, kw := range d.keywords {
			switch {
			case strings.Contains(padded, " "+kw+" "):
				score += 3
			case strings.Contains(normalized, kw):
				score++
			}
		}
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return Unknown("keyword"), nil
	}

	d := k.defs[best]
	res := Result{Intent: d.intent, Confidence: 0.6, Source: "keyword"}
	if bestScore >= 3 {
		res.Confidence = 0.9
	}
	res.Slots = extractSlots(d, normalized)
	return res, nil
}

func extractSlots(d compiledDef, normalized string) Slots {
	var s Slots
	tokens := strings.Fields(normalized)

	for i, tok := range tokens {
		if s.Amount == 0 {
			if v, err := strconv.ParseFloat(tok, 64); err == nil && v > 0 {
				s.Amount = v
			}
		}
		if s.ToName == "" && i+1 < len(tokens) {
			if _, ok := recipientMarkers[tok]; ok {
				s.ToName = tokens[i+1]
			}
		}
	}

	if d.intent != IntentAddItem && d.intent != IntentCheckPrice {
		return s
	}
	rest := tokens[:0:0]
	for _, tok := range tokens {
		if slices.Contains(d.keywords, tok) {
			continue
		}
		if _, ok := itemFillers[tok]; ok {
			continue
		}
		if n, err := strconv.Atoi(tok); err == nil && s.Qty == 0 {
			s.Qty = n
			continue
		}
		rest = append(rest, tok)
	}
	s.ItemName = strings.Join(rest, " ")
	return s
}
