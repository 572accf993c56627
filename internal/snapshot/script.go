// internal/snapshot/script.go
package snapshot

// clickableSelector mirrors what users can actually activate, including
// onclick-bearing divs and spans that sites use instead of buttons.
const clickableSelector = `a, button, [role='button'], [role='link'], div[onclick], span[onclick], input[type='submit'], input[type='button'], input[type='checkbox'], input[type='radio']`

const inputSelector = `input, textarea, select`

// extractScript walks the matched elements and returns serializable
// candidate records. Stamped CSS paths stay resolvable until the next
// navigation. Takes the selector and a hard result ceiling via Sprintf.
const extractScript = `(() => {
    const sel = %q;
    const ceiling = %d;
    const cssPath = (el) => {
        if (el.id) return '#' + CSS.escape(el.id);
        const parts = [];
        while (el && el.nodeType === Node.ELEMENT_NODE && parts.length < 12) {
            let part = el.tagName.toLowerCase();
            if (el.id) {
                parts.unshift('#' + CSS.escape(el.id));
                break;
            }
            const parent = el.parentElement;
            if (parent) {
                const same = Array.from(parent.children).filter(c => c.tagName === el.tagName);
                if (same.length > 1) {
                    part += ':nth-of-type(' + (same.indexOf(el) + 1) + ')';
                }
            }
            parts.unshift(part);
            el = parent;
        }
        return parts.join(' > ');
    };
    const isVisible = (el) => {
        const st = getComputedStyle(el);
        if (st.display === 'none' || st.visibility === 'hidden' || st.opacity === '0') return false;
        const r = el.getBoundingClientRect();
        return r.width > 0 && r.height > 0;
    };
    const out = [];
    for (const el of document.querySelectorAll(sel)) {
        if (out.length >= ceiling) break;
        try {
            if (!isVisible(el)) continue;
            const r = el.getBoundingClientRect();
            const text = (el.innerText || el.value || '').trim().slice(0, 300);
            let ancestor = '';
            const host = el.closest('li, article, [class*="card"], [class*="product"], [class*="item"]');
            if (host && host !== el) {
                ancestor = (host.innerText || '').trim().slice(0, 300);
            }
            out.push({
                tag: el.tagName.toLowerCase(),
                role: el.getAttribute('role') || '',
                text: text,
                ancestorText: ancestor,
                placeholder: el.getAttribute('placeholder') || '',
                ariaLabel: el.getAttribute('aria-label') || '',
                name: el.getAttribute('name') || '',
                id: el.id || '',
                href: el.getAttribute('href') || '',
                inputType: (el.getAttribute('type') || '').toLowerCase(),
                locator: cssPath(el),
                box: {
                    x: r.x + window.scrollX,
                    y: r.y + window.scrollY,
                    width: r.width,
                    height: r.height
                },
                visible: true
            });
        } catch (e) {
            continue;
        }
    }
    return out;
})()`
