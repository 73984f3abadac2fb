package captation

import (
	"context"
	"sync"
)

const (
	minPhoneDigitsForMatch = 10
	phoneSuffixLength      = 8
)

// Detector decides whether a lead is already stored in a city.
type Detector struct {
	repo SiteRepository
}

func NewDetector(repo SiteRepository) *Detector {
	return &Detector{repo: repo}
}

// IsDuplicate matches by company name first, then by the last eight digits of
// the phone, which survive missing country or area codes. Names are compared
// through NameKey, so case and accents are both ignored: "Pão Quente" and
// "PAO QUENTE" are the same lead.
func (d *Detector) IsDuplicate(ctx context.Context, companyName, cityID, phone string) (bool, error) {
	if cityID == "" {
		return false, nil
	}

	if key := NameKey(companyName); key != "" {
		found, err := d.repo.ExistsByName(ctx, cityID, key)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}

	if len(onlyDigits(phone)) < minPhoneDigitsForMatch {
		return false, nil
	}
	return d.repo.ExistsByPhoneSuffix(ctx, cityID, PhoneSuffix(phone, phoneSuffixLength))
}

// leadKeys returns the identities IsDuplicate matches on for a lead in cityID.
func leadKeys(companyName, cityID, phone string) []string {
	keys := make([]string, 0, 2)
	if key := NameKey(companyName); key != "" {
		keys = append(keys, "name|"+cityID+"|"+key)
	}
	if len(onlyDigits(phone)) >= minPhoneDigitsForMatch {
		keys = append(keys, "phone|"+cityID+"|"+PhoneSuffix(phone, phoneSuffixLength))
	}
	return keys
}

// claimSet holds the lead identities taken by records of one import run that
// are not yet visible in the store.
type claimSet struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newClaimSet() *claimSet {
	return &claimSet{keys: make(map[string]struct{})}
}

// claim takes every key or none. It fails when any key is already held.
func (c *claimSet) claim(keys []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		if _, held := c.keys[k]; held {
			return false
		}
	}
	for _, k := range keys {
		c.keys[k] = struct{}{}
	}
	return true
}

func (c *claimSet) release(keys []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.keys, k)
	}
}
