// internal/browser/script.go
package browser

// selectOptionScript picks an option by visible label, falling back to
// value, and dispatches input/change. Sprintf args: selector, label.
const selectOptionScript = `(() => {
    const el = document.querySelector(%s);
    if (!el || el.tagName.toLowerCase() !== 'select') return false;
    const want = %s.trim().toLowerCase();
    for (const opt of el.options) {
        const label = (opt.label || opt.textContent || '').trim().toLowerCase();
        const value = (opt.value || '').trim().toLowerCase();
        if (label === want || value === want) {
            el.value = opt.value;
            el.dispatchEvent(new Event('input', { bubbles: true }));
            el.dispatchEvent(new Event('change', { bubbles: true }));
            return true;
        }
    }
    return false;
})()`

// checkScript sets a checkbox or radio to checked. Sprintf arg: selector.
const checkScript = `(() => {
    const el = document.querySelector(%s);
    if (!el) return false;
    const type = (el.getAttribute('type') || '').toLowerCase();
    if (el.tagName.toLowerCase() !== 'input' || (type !== 'checkbox' && type !== 'radio')) {
        return false;
    }
    if (!el.checked) {
        el.checked = true;
        el.dispatchEvent(new Event('input', { bubbles: true }));
        el.dispatchEvent(new Event('change', { bubbles: true }));
        el.dispatchEvent(new Event('click', { bubbles: true }));
    }
    return true;
})()`

// neighborScript reads a structural neighbour of a located node and
// serializes it as a candidate record. Sprintf args: selector, accessor
// ("parentElement" or "nextElementSibling"). Returns null when the node
// or its neighbour does not exist.
const neighborScript = `(() => {
    const origin = document.querySelector(%s);
    if (!origin) return null;
    const el = origin.%s;
    if (!el || el.nodeType !== Node.ELEMENT_NODE) return null;
    const cssPath = (node) => {
        if (node.id) return '#' + CSS.escape(node.id);
        const parts = [];
        while (node && node.nodeType === Node.ELEMENT_NODE && parts.length < 12) {
            let part = node.tagName.toLowerCase();
            if (node.id) {
                parts.unshift('#' + CSS.escape(node.id));
                break;
            }
            const parent = node.parentElement;
            if (parent) {
                const same = Array.from(parent.children).filter(c => c.tagName === node.tagName);
                if (same.length > 1) {
                    part += ':nth-of-type(' + (same.indexOf(node) + 1) + ')';
                }
            }
            parts.unshift(part);
            node = parent;
        }
        return parts.join(' > ');
    };
    const st = getComputedStyle(el);
    const r = el.getBoundingClientRect();
    const visible = st.display !== 'none' && st.visibility !== 'hidden' &&
        st.opacity !== '0' && r.width > 0 && r.height > 0;
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
        box: {
            x: r.x + window.scrollX,
            y: r.y + window.scrollY,
            width: r.width,
            height: r.height
        },
        visible: visible
    };
})()`
