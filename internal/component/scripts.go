// internal/component/scripts.go
package component

// jsHelpers is the shared prelude for every extractor script: stable CSS
// paths, visibility, and the candidate record shape the Go side decodes.
const jsHelpers = `
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
    const record = (el) => {
        const r = el.getBoundingClientRect();
        return {
            tag: el.tagName.toLowerCase(),
            role: el.getAttribute('role') || '',
            text: (el.innerText || el.value || '').trim().slice(0, 300),
            placeholder: el.getAttribute('placeholder') || '',
            ariaLabel: el.getAttribute('aria-label') || '',
            name: el.getAttribute('name') || '',
            id: el.id || '',
            href: el.getAttribute('href') || '',
            inputType: (el.getAttribute('type') || '').toLowerCase(),
            locator: cssPath(el),
            box: {x: r.x + window.scrollX, y: r.y + window.scrollY, width: r.width, height: r.height},
            visible: true
        };
    };
    const labelFor = (el) => {
        if (el.id) {
            const lab = document.querySelector('label[for="' + CSS.escape(el.id) + '"]');
            if (lab && lab.innerText.trim()) return lab.innerText.trim();
        }
        return (el.getAttribute('placeholder') || el.getAttribute('aria-label') ||
                el.getAttribute('name') || el.tagName.toLowerCase()).trim();
    };
`

// productCardScript finds product-ish containers holding an anchor and a
// plausible amount of text; the emitted element is the purchasable anchor,
// not the container.
const productCardScript = `(() => {` + jsHelpers + `
    const sel = "div[class*='product'], article[class*='product'], [data-testid*='product'], .product-card, .product-item, li[class*='product']";
    const out = [];
    for (const card of document.querySelectorAll(sel)) {
        if (out.length >= 80) break;
        try {
            if (!isVisible(card)) continue;
            const text = (card.innerText || '').trim();
            if (text.length < 20 || text.length > 800) continue;
            const anchor = card.querySelector('a');
            if (!anchor || !isVisible(anchor)) continue;
            const el = record(anchor);
            el.ancestorText = text.slice(0, 300);
            out.push({label: (anchor.innerText.trim() || text).slice(0, 120), element: el});
        } catch (e) { continue; }
    }
    return out;
})()`

const formInputScript = `(() => {` + jsHelpers + `
    const out = [];
    for (const el of document.querySelectorAll('input, textarea, select')) {
        if (out.length >= 50) break;
        try {
            if (!isVisible(el)) continue;
            const type = (el.getAttribute('type') || '').toLowerCase();
            if (type === 'hidden' || type === 'radio' || type === 'checkbox') continue;
            out.push({label: labelFor(el).slice(0, 120), element: record(el)});
        } catch (e) { continue; }
    }
    return out;
})()`

const navItemScript = `(() => {` + jsHelpers + `
    const sel = "nav a, [role='navigation'] a, header a, [class*='nav'] a, [class*='menu'] a";
    const out = [];
    const seen = new Set();
    for (const el of document.querySelectorAll(sel)) {
        if (out.length >= 80) break;
        try {
            if (!isVisible(el)) continue;
            const text = (el.innerText || '').trim();
            if (!text || text.length > 80) continue;
            const loc = cssPath(el);
            if (seen.has(loc)) continue;
            seen.add(loc);
            out.push({label: text, element: record(el)});
        } catch (e) { continue; }
    }
    return out;
})()`

const buttonScript = `(() => {` + jsHelpers + `
    const sel = "button, [role='button'], input[type='submit'], input[type='button']";
    const out = [];
    for (const el of document.querySelectorAll(sel)) {
        if (out.length >= 100) break;
        try {
            if (!isVisible(el)) continue;
            const r = record(el);
            const label = r.text || r.ariaLabel || r.name;
            if (!label) continue;
            out.push({label: label.slice(0, 120), element: r});
        } catch (e) { continue; }
    }
    return out;
})()`

const modalScript = `(() => {` + jsHelpers + `
    const sel = "[role='dialog'], dialog, .modal, [class*='modal'], [class*='overlay']";
    const out = [];
    for (const el of document.querySelectorAll(sel)) {
        if (out.length >= 5) break;
        try {
            if (!isVisible(el)) continue;
            const text = (el.innerText || '').trim().slice(0, 200);
            out.push({label: text || 'Modal', element: record(el)});
        } catch (e) { continue; }
    }
    return out;
})()`

// radioGroupScript emits one component per radio name group, handled by
// the first visible member.
const radioGroupScript = `(() => {` + jsHelpers + `
    const out = [];
    const groups = new Set();
    for (const el of document.querySelectorAll("input[type='radio']")) {
        if (out.length >= 30) break;
        try {
            if (!isVisible(el)) continue;
            const group = el.getAttribute('name') || cssPath(el);
            if (groups.has(group)) continue;
            groups.add(group);
            out.push({label: labelFor(el).slice(0, 120), element: record(el)});
        } catch (e) { continue; }
    }
    return out;
})()`

const checkboxScript = `(() => {` + jsHelpers + `
    const out = [];
    for (const el of document.querySelectorAll("input[type='checkbox']")) {
        if (out.length >= 30) break;
        try {
            if (!isVisible(el)) continue;
            out.push({label: labelFor(el).slice(0, 120), element: record(el)});
        } catch (e) { continue; }
    }
    return out;
})()`
